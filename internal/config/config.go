// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"SHOP_DB_PATH" envDefault:"./data/shop.db"`
	SessionSecret string `env:"SHOP_SESSION_SECRET,required"`
	ServerHost    string `env:"SHOP_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"SHOP_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"SHOP_ENV" envDefault:"development"`
	LogLevel      string `env:"SHOP_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"SHOP_UPLOADS_DIR" envDefault:"./uploads"`
	PublicDir     string `env:"SHOP_PUBLIC_DIR" envDefault:"./public"`

	// Catalog configuration
	DefaultCategory string `env:"SHOP_DEFAULT_CATEGORY" envDefault:"General"`

	// Seed credentials for the initial admin user. Only used when the
	// admins table is empty; change the password after first login.
	AdminUsername string `env:"SHOP_ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"SHOP_ADMIN_PASSWORD" envDefault:"changeme"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("SHOP_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("SHOP_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if strings.TrimSpace(cfg.DefaultCategory) == "" {
		return nil, fmt.Errorf("SHOP_DEFAULT_CATEGORY must not be blank")
	}

	return cfg, nil
}
