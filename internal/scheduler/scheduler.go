// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nafeskey/shop-go/internal/service"
	"github.com/nafeskey/shop-go/internal/store"
)

// orphanGracePeriod is how long an unreferenced upload file is left alone
// before the sweep removes it. Generous enough that an upload in flight is
// never swept between asset write and row insert.
const orphanGracePeriod = 24 * time.Hour

// Scheduler handles scheduled maintenance like sweeping orphaned uploads.
type Scheduler struct {
	db     *sql.DB
	assets *service.AssetManager
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a new scheduler instance.
func New(db *sql.DB, assets *service.AssetManager, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		db:     db,
		assets: assets,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start begins the scheduler with an hourly orphaned-upload sweep.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc("@hourly", func() {
		if err := s.sweepOrphanedUploads(); err != nil {
			s.logger.Error("failed to sweep orphaned uploads", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// sweepOrphanedUploads removes upload files no product references anymore.
// Deletion tolerates asset-removal failures, so orphans accumulate slowly;
// this bounds them.
func (s *Scheduler) sweepOrphanedUploads() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	images, err := store.New(s.db).ListProductImages(ctx)
	if err != nil {
		return err
	}

	removed, err := s.assets.SweepOrphans(images, orphanGracePeriod)
	if err != nil {
		return err
	}

	if removed > 0 {
		s.logger.Info("swept orphaned uploads", "removed", removed)
	}
	return nil
}
