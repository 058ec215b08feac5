package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// pngBytes encodes a small solid-color PNG for upload tests.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 60, B: 60, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func newTestAssetManager(t *testing.T) *AssetManager {
	t.Helper()

	m, err := NewAssetManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewAssetManager error: %v", err)
	}
	return m
}

func TestAssetManagerStore(t *testing.T) {
	m := newTestAssetManager(t)
	data := pngBytes(t, 640, 480)

	assetPath, err := m.Store(bytes.NewReader(data), "photo.png", "image/png", int64(len(data)))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if !strings.HasPrefix(assetPath, "/uploads/") {
		t.Fatalf("asset path = %q, want /uploads/ prefix", assetPath)
	}
	if filepath.Ext(assetPath) != ".png" {
		t.Errorf("asset path kept wrong extension: %q", assetPath)
	}
	if !m.Exists(assetPath) {
		t.Fatal("stored asset not found on disk")
	}

	stored, err := os.ReadFile(filepath.Join(m.UploadDir(), filepath.Base(assetPath)))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Fatal("stored file differs from upload")
	}

	// Thumbnail is generated alongside the original.
	thumb := filepath.Join(m.UploadDir(), ThumbsDirName, thumbName(filepath.Base(assetPath)))
	if _, err := os.Stat(thumb); err != nil {
		t.Fatalf("thumbnail missing: %v", err)
	}
}

func TestAssetManagerStore_UniqueFilenames(t *testing.T) {
	m := newTestAssetManager(t)
	data := pngBytes(t, 10, 10)

	p1, err := m.Store(bytes.NewReader(data), "same.png", "image/png", int64(len(data)))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	p2, err := m.Store(bytes.NewReader(data), "same.png", "image/png", int64(len(data)))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("two uploads share the same path: %q", p1)
	}
}

func TestAssetManagerStore_RejectsBadType(t *testing.T) {
	m := newTestAssetManager(t)

	tests := []struct {
		name     string
		filename string
		mimeType string
	}{
		{"executable extension", "malware.exe", "image/png"},
		{"no extension", "noext", "image/png"},
		{"pdf", "doc.pdf", "application/pdf"},
		{"good extension bad type", "photo.png", "text/html"},
		{"svg not allowed", "vector.svg", "image/svg+xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Store(bytes.NewReader([]byte("data")), tt.filename, tt.mimeType, 4)
			if !errors.Is(err, ErrInvalidFileType) {
				t.Fatalf("error = %v, want ErrInvalidFileType", err)
			}
		})
	}

	// Nothing may be written for rejected uploads.
	entries, err := os.ReadDir(m.UploadDir())
	if err != nil {
		t.Fatalf("reading upload dir: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			t.Errorf("rejected upload left file behind: %s", e.Name())
		}
	}
}

func TestAssetManagerStore_EmptyContentTypeFallsBackToExtension(t *testing.T) {
	m := newTestAssetManager(t)
	data := pngBytes(t, 10, 10)

	if _, err := m.Store(bytes.NewReader(data), "photo.png", "", int64(len(data))); err != nil {
		t.Fatalf("Store error: %v", err)
	}
}

func TestAssetManagerStore_RejectsOversized(t *testing.T) {
	m := newTestAssetManager(t)

	_, err := m.Store(bytes.NewReader(nil), "big.jpg", "image/jpeg", MaxUploadSize+1)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestAssetManagerStore_RejectsUnderstatedSize(t *testing.T) {
	m := newTestAssetManager(t)

	// The client declares a small size but streams more than the limit.
	big := bytes.NewReader(make([]byte, MaxUploadSize+1024))
	_, err := m.Store(big, "big.jpg", "image/jpeg", 100)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}

	entries, err := os.ReadDir(m.UploadDir())
	if err != nil {
		t.Fatalf("reading upload dir: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			t.Errorf("oversized upload left partial file behind: %s", e.Name())
		}
	}
}

func TestAssetManagerDelete(t *testing.T) {
	m := newTestAssetManager(t)
	data := pngBytes(t, 20, 20)

	assetPath, err := m.Store(bytes.NewReader(data), "photo.png", "image/png", int64(len(data)))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if err := m.Delete(assetPath); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if m.Exists(assetPath) {
		t.Fatal("asset still on disk after delete")
	}

	thumb := filepath.Join(m.UploadDir(), ThumbsDirName, thumbName(filepath.Base(assetPath)))
	if _, err := os.Stat(thumb); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("thumbnail still on disk after delete: %v", err)
	}

	// Deleting again and deleting nothing are both fine.
	if err := m.Delete(assetPath); err != nil {
		t.Fatalf("second Delete error: %v", err)
	}
	if err := m.Delete(""); err != nil {
		t.Fatalf("Delete of empty path error: %v", err)
	}
}

func TestAssetManagerDelete_IgnoresPathComponents(t *testing.T) {
	m := newTestAssetManager(t)

	outside := filepath.Join(filepath.Dir(m.UploadDir()), "precious.txt")
	if err := os.WriteFile(outside, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	if err := m.Delete("/uploads/../precious.txt"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Fatal("delete escaped the uploads directory")
	}
}

func TestSweepOrphans(t *testing.T) {
	m := newTestAssetManager(t)
	data := pngBytes(t, 10, 10)

	kept, err := m.Store(bytes.NewReader(data), "kept.png", "image/png", int64(len(data)))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	orphan, err := m.Store(bytes.NewReader(data), "orphan.png", "image/png", int64(len(data)))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	// Fresh files survive the grace period.
	removed, err := m.SweepOrphans([]string{kept}, time.Hour)
	if err != nil {
		t.Fatalf("SweepOrphans error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0 inside grace period", removed)
	}

	// With no grace period, the unreferenced file and its thumbnail go.
	removed, err = m.SweepOrphans([]string{kept}, -time.Second)
	if err != nil {
		t.Fatalf("SweepOrphans error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2 (file and thumbnail)", removed)
	}

	if !m.Exists(kept) {
		t.Fatal("referenced asset was swept")
	}
	if m.Exists(orphan) {
		t.Fatal("orphaned asset survived the sweep")
	}
}
