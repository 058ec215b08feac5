// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/nafeskey/shop-go/internal/model"
	"github.com/nafeskey/shop-go/internal/store"
)

// ErrNotFound is returned when the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ValidationError reports missing or invalid product input. The message
// names the offending field and is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProductInput holds the raw form fields for creating or updating a product.
// Price arrives as the raw form string and is validated here.
type ProductInput struct {
	Name        string
	Price       string
	Description string
	Category    string
}

// ProductService coordinates product persistence with the asset manager:
// validate, sanitize, store the asset, then write the row.
type ProductService struct {
	queries         *store.Queries
	assets          *AssetManager
	defaultCategory string
	sanitizer       *bluemonday.Policy
}

// NewProductService creates a ProductService.
func NewProductService(db *sql.DB, assets *AssetManager, defaultCategory string) *ProductService {
	return &ProductService{
		queries:         store.New(db),
		assets:          assets,
		defaultCategory: defaultCategory,
		// Product fields are plain text; strip any markup before storage.
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// List returns all products, newest first.
func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	return s.queries.ListProducts(ctx)
}

// Get returns a single product. Returns ErrNotFound if it does not exist.
func (s *ProductService) Get(ctx context.Context, id int64) (model.Product, error) {
	product, err := s.queries.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Product{}, ErrNotFound
		}
		return model.Product{}, fmt.Errorf("getting product %d: %w", id, err)
	}
	return product, nil
}

// Create validates the input, stores the image asset and inserts the
// product row. The asset is stored first; if the insert fails the stored
// asset is removed so neither an orphaned row nor a dangling reference is
// left behind.
func (s *ProductService) Create(ctx context.Context, input ProductInput, image multipart.File, header *multipart.FileHeader) (model.Product, error) {
	fields, err := s.validate(input)
	if err != nil {
		return model.Product{}, err
	}
	if image == nil || header == nil {
		return model.Product{}, &ValidationError{Message: "Image is required"}
	}

	assetPath, err := s.assets.Store(image, header.Filename, header.Header.Get("Content-Type"), header.Size)
	if err != nil {
		return model.Product{}, err
	}

	product, err := s.queries.CreateProduct(ctx, store.CreateProductParams{
		Name:        fields.name,
		Price:       fields.price,
		Description: fields.description,
		Category:    fields.category,
		Image:       assetPath,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		// Clean up the stored asset on insert failure.
		_ = s.assets.Delete(assetPath)
		return model.Product{}, fmt.Errorf("creating product: %w", err)
	}

	return product, nil
}

// Update validates the input and updates the product row. A new image, if
// supplied, is stored first and replaces the old one; the replaced asset is
// then removed best-effort. Without a new image the stored image path is
// preserved untouched. Returns ErrNotFound if the product does not exist.
func (s *ProductService) Update(ctx context.Context, id int64, input ProductInput, image multipart.File, header *multipart.FileHeader) (model.Product, error) {
	fields, err := s.validate(input)
	if err != nil {
		return model.Product{}, err
	}

	// Fetch before storing anything so an update of a missing product
	// leaves no stray asset behind.
	existing, err := s.Get(ctx, id)
	if err != nil {
		return model.Product{}, err
	}

	newImage := ""
	if image != nil && header != nil {
		newImage, err = s.assets.Store(image, header.Filename, header.Header.Get("Content-Type"), header.Size)
		if err != nil {
			return model.Product{}, err
		}
	}

	affected, err := s.queries.UpdateProduct(ctx, store.UpdateProductParams{
		ID:          id,
		Name:        fields.name,
		Price:       fields.price,
		Description: fields.description,
		Category:    fields.category,
		Image:       newImage,
	})
	if err != nil {
		if newImage != "" {
			_ = s.assets.Delete(newImage)
		}
		return model.Product{}, fmt.Errorf("updating product %d: %w", id, err)
	}
	if affected == 0 {
		// Row vanished between the fetch and the update.
		if newImage != "" {
			_ = s.assets.Delete(newImage)
		}
		return model.Product{}, ErrNotFound
	}

	// The row now points at the new asset; removing the replaced file is
	// best-effort and never fails the update.
	if newImage != "" && existing.Image != newImage {
		if err := s.assets.Delete(existing.Image); err != nil {
			slog.Warn("failed to delete replaced product image",
				"product_id", id, "image", existing.Image, "error", err)
		}
	}

	return s.Get(ctx, id)
}

// Delete removes the product row, then best-effort deletes its image asset.
// A failed asset removal is logged, not surfaced; an orphaned file is
// preferred over a dangling reference. Returns ErrNotFound if the product
// does not exist.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	product, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	affected, err := s.queries.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := s.assets.Delete(product.Image); err != nil {
		slog.Warn("failed to delete product image",
			"product_id", id, "image", product.Image, "error", err)
	}

	return nil
}

// validatedFields holds sanitized, parsed product fields.
type validatedFields struct {
	name        string
	price       float64
	description string
	category    string
}

// validate checks required fields, parses the price and sanitizes free text.
func (s *ProductService) validate(input ProductInput) (validatedFields, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(input.Name))
	if name == "" {
		return validatedFields{}, &ValidationError{Message: "Name is required"}
	}

	priceRaw := strings.TrimSpace(input.Price)
	if priceRaw == "" {
		return validatedFields{}, &ValidationError{Message: "Price is required"}
	}
	price, err := strconv.ParseFloat(priceRaw, 64)
	if err != nil || price <= 0 {
		return validatedFields{}, &ValidationError{Message: "Price must be a positive number"}
	}

	category := strings.TrimSpace(s.sanitizer.Sanitize(input.Category))
	if category == "" {
		category = s.defaultCategory
	}

	return validatedFields{
		name:        name,
		price:       price,
		description: strings.TrimSpace(s.sanitizer.Sanitize(input.Description)),
		category:    category,
	}, nil
}
