// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/nafeskey/shop-go/internal/config"
	"github.com/nafeskey/shop-go/internal/handler"
	"github.com/nafeskey/shop-go/internal/middleware"
	"github.com/nafeskey/shop-go/internal/scheduler"
	"github.com/nafeskey/shop-go/internal/service"
	"github.com/nafeskey/shop-go/internal/session"
	"github.com/nafeskey/shop-go/internal/store"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("shop %s (%s)\n", appVersion, appGitCommit)
		return
	}

	// Load .env file if present (ignore error - optional in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupLogger configures the global slog logger from config.
func setupLogger(cfg *config.Config) {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Database
	if err := os.MkdirAll(dirOf(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Ensure at least one admin exists (idempotent).
	if err := store.EnsureAdmin(ctx, db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}

	// Sessions
	sm := session.New(db, cfg.IsDevelopment())

	// File assets
	assets, err := service.NewAssetManager(cfg.UploadsDir)
	if err != nil {
		return fmt.Errorf("initializing asset manager: %w", err)
	}

	// Services and handlers
	products := service.NewProductService(db, assets, cfg.DefaultCategory)
	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())

	productHandler := handler.NewProductHandler(products)
	authHandler := handler.NewAuthHandler(db, sm, loginProtection)
	healthHandler := handler.NewHealthHandler(db)

	// Maintenance jobs
	sched := scheduler.New(db, assets, slog.Default())
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	csrfCfg := middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment())

	r.Route("/api", func(r chi.Router) {
		r.Use(sm.LoadAndSave)
		r.Use(middleware.CSRF(csrfCfg))

		r.Get("/health", healthHandler.Health)

		r.Get("/products", productHandler.List)
		r.Get("/products/{id}", productHandler.Get)

		r.Post("/admin/login", authHandler.Login)
		r.Post("/admin/logout", authHandler.Logout)
		r.Get("/admin/check", authHandler.Check)

		// Mutating catalog routes require an authenticated admin session.
		// The gate runs before any handler side effect.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(sm, db))
			r.Post("/products", productHandler.Create)
			r.Put("/products/{id}", productHandler.Update)
			r.Delete("/products/{id}", productHandler.Delete)
		})
	})

	// Uploaded images are public, served under /uploads/.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))

	// Storefront/admin static files, when present.
	if info, err := os.Stat(cfg.PublicDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(cfg.PublicDir)))
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", cfg.ServerAddr(),
			"env", cfg.Env,
			"version", appVersion,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdownCtx.Done():
	}

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	return nil
}

// dirOf returns the directory portion of a file path, defaulting to ".".
func dirOf(path string) string {
	if dir := filepath.Dir(path); dir != "" {
		return dir
	}
	return "."
}
