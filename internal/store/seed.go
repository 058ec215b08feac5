package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nafeskey/shop-go/internal/auth"
)

// Default admin credentials, used only when no credentials are configured.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "changeme"
)

// EnsureAdmin creates the initial admin user if the admins table is empty.
// It is idempotent and safe to run on every startup.
func EnsureAdmin(ctx context.Context, db *sql.DB, username, password string) error {
	if username == "" {
		username = DefaultAdminUsername
	}
	if password == "" {
		password = DefaultAdminPassword
	}

	queries := New(db)

	count, err := queries.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("checking for admin users: %w", err)
	}
	if count > 0 {
		return nil
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	admin, err := queries.CreateAdmin(ctx, CreateAdminParams{
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created default admin user, change the password in production",
		"id", admin.ID,
		"username", admin.Username,
	)

	return nil
}
