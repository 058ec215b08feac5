// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the application services: file asset handling
// and the product catalog pipeline.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/nafeskey/shop-go/internal/model"
)

// Upload limits and layout.
const (
	MaxUploadSize = 5 * 1024 * 1024 // 5MB

	// ThumbsDirName is the subdirectory of the uploads dir holding thumbnails.
	ThumbsDirName = "thumbs"

	thumbSize = 300
)

// Upload validation errors.
var (
	ErrInvalidFileType = errors.New("only jpeg, jpg, png, gif and webp images are allowed")
	ErrFileTooLarge    = fmt.Errorf("file exceeds the maximum allowed size of %d bytes", MaxUploadSize)
)

// allowedExtensions maps accepted file extensions to their MIME type.
var allowedExtensions = map[string]string{
	".jpg":  model.MimeTypeJPEG,
	".jpeg": model.MimeTypeJPEG,
	".png":  model.MimeTypePNG,
	".gif":  model.MimeTypeGIF,
	".webp": model.MimeTypeWebP,
}

// AssetManager stores and removes uploaded product images on the local
// filesystem. Stored assets are addressed by their public URL path
// (/uploads/<filename>).
type AssetManager struct {
	uploadDir string
}

// NewAssetManager creates an AssetManager rooted at uploadDir, creating the
// directory tree if needed.
func NewAssetManager(uploadDir string) (*AssetManager, error) {
	if err := os.MkdirAll(filepath.Join(uploadDir, ThumbsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &AssetManager{uploadDir: uploadDir}, nil
}

// UploadDir returns the filesystem directory assets are stored under.
func (m *AssetManager) UploadDir() string {
	return m.uploadDir
}

// Store validates and persists an uploaded image, returning its public path.
// The file type is checked against both the filename extension and the
// declared content type, and the payload must not exceed MaxUploadSize.
// Nothing is written to disk unless validation passes.
func (m *AssetManager) Store(file io.Reader, originalFilename, mimeType string, declaredSize int64) (string, error) {
	if declaredSize > MaxUploadSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(originalFilename))
	extMime, ok := allowedExtensions[ext]
	if !ok {
		return "", ErrInvalidFileType
	}

	// The declared content type must also be an allowed image type. Some
	// clients omit it; fall back to the extension's type then.
	if mimeType == "" {
		mimeType = extMime
	}
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !model.IsSupportedImageType(mimeType) {
		return "", ErrInvalidFileType
	}

	// Buffer the payload before touching disk so an oversized upload never
	// leaves a partial file behind. The extra byte detects clients that
	// understate the declared size.
	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > MaxUploadSize {
		return "", ErrFileTooLarge
	}

	// Unique across concurrent uploads: millisecond timestamp plus a random
	// component, keeping the original extension.
	filename := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)

	path := filepath.Join(m.uploadDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}

	// Thumbnail generation is best-effort; the original is already safe.
	if err := m.createThumbnail(data, filename); err != nil {
		slog.Warn("failed to create thumbnail", "filename", filename, "error", err)
	}

	return "/uploads/" + filename, nil
}

// Delete removes the asset behind the given public path and its thumbnail.
// A missing file is treated as already deleted.
func (m *AssetManager) Delete(assetPath string) error {
	if assetPath == "" {
		return nil
	}

	// Base strips any path components, so a stored value can never point
	// outside the uploads directory.
	filename := filepath.Base(assetPath)

	if err := os.Remove(filepath.Join(m.uploadDir, filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting asset %s: %w", filename, err)
	}

	thumb := filepath.Join(m.uploadDir, ThumbsDirName, thumbName(filename))
	if err := os.Remove(thumb); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting thumbnail for %s: %w", filename, err)
	}

	return nil
}

// Exists reports whether the asset behind the given public path is on disk.
func (m *AssetManager) Exists(assetPath string) bool {
	if assetPath == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(m.uploadDir, filepath.Base(assetPath)))
	return err == nil
}

// SweepOrphans removes upload files older than the grace period that are
// referenced by no product. Returns the number of files removed.
func (m *AssetManager) SweepOrphans(referencedPaths []string, olderThan time.Duration) (int, error) {
	referenced := make(map[string]bool, len(referencedPaths))
	for _, p := range referencedPaths {
		name := filepath.Base(p)
		referenced[name] = true
		referenced[thumbName(name)] = true
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	sweepDir := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || referenced[entry.Name()] {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				slog.Warn("failed to remove orphaned upload", "file", entry.Name(), "error", err)
				continue
			}
			removed++
		}
		return nil
	}

	if err := sweepDir(m.uploadDir); err != nil {
		return removed, err
	}
	if err := sweepDir(filepath.Join(m.uploadDir, ThumbsDirName)); err != nil {
		return removed, err
	}

	return removed, nil
}

// createThumbnail decodes the uploaded image, corrects EXIF orientation and
// writes a square thumbnail. Thumbnails are always PNG so transparency and
// formats without an encoder (webp) are handled uniformly.
func (m *AssetManager) createThumbnail(data []byte, filename string) error {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	thumb := imaging.Fill(img, thumbSize, thumbSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return fmt.Errorf("encoding thumbnail: %w", err)
	}

	path := filepath.Join(m.uploadDir, ThumbsDirName, thumbName(filename))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing thumbnail: %w", err)
	}

	return nil
}

// thumbName returns the thumbnail filename for an asset filename.
func thumbName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png"
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
