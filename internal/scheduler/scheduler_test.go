package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nafeskey/shop-go/internal/service"
	"github.com/nafeskey/shop-go/internal/store"
	"github.com/nafeskey/shop-go/internal/testutil"
)

func writeUpload(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("image data"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("setting file times: %v", err)
	}
	return path
}

func TestSweepOrphanedUploads(t *testing.T) {
	db := testutil.TestDB(t)

	assets, err := service.NewAssetManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetManager error: %v", err)
	}

	// One referenced upload, one orphan, both well past the grace period.
	referenced := writeUpload(t, assets.UploadDir(), "referenced.jpg", 48*time.Hour)
	orphan := writeUpload(t, assets.UploadDir(), "orphan.jpg", 48*time.Hour)
	fresh := writeUpload(t, assets.UploadDir(), "fresh.jpg", time.Minute)

	_, err = store.New(db).CreateProduct(context.Background(), store.CreateProductParams{
		Name:      "Widget",
		Price:     9.99,
		Image:     "/uploads/referenced.jpg",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}

	s := New(db, assets, testutil.TestLogger())
	if err := s.sweepOrphanedUploads(); err != nil {
		t.Fatalf("sweep error: %v", err)
	}

	if _, err := os.Stat(referenced); err != nil {
		t.Error("referenced upload was swept")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("upload inside the grace period was swept")
	}
	if _, err := os.Stat(orphan); err == nil {
		t.Error("orphaned upload survived the sweep")
	}
}

func TestStartStop(t *testing.T) {
	db := testutil.TestDB(t)

	assets, err := service.NewAssetManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetManager error: %v", err)
	}

	s := New(db, assets, testutil.TestLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := len(s.cron.Entries()); got != 1 {
		t.Errorf("scheduled jobs = %d, want 1", got)
	}
	s.Stop()
}
