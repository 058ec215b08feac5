// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nafeskey/shop-go/internal/service"
)

// maxMultipartMemory is how much of a multipart body is held in memory
// before spilling to temp files.
const maxMultipartMemory = 8 * 1024 * 1024

// multipartOverhead leaves room for the non-file form fields on top of the
// upload size cap when bounding the request body.
const multipartOverhead = 1024 * 1024

// ProductHandler handles product CRUD routes.
type ProductHandler struct {
	products *service.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products *service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// List handles GET /api/products. Always succeeds with an array, newest first.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		slog.Error("failed to list products", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load products")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// Get handles GET /api/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Product not found")
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "Product not found")
			return
		}
		slog.Error("failed to get product", "id", id, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load product")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// Create handles POST /api/products (multipart form with an image file).
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, image, header, ok := parseProductForm(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer func() { _ = image.Close() }()
	}

	product, err := h.products.Create(r.Context(), input, image, header)
	if err != nil {
		writeProductError(w, err, "create product")
		return
	}

	writeJSONSuccess(w, map[string]any{
		"product": product,
		"message": "Product added successfully!",
	})
}

// Update handles PUT /api/products/{id}. The image file is optional; the
// stored image is preserved when no new file is supplied.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Product not found")
		return
	}

	input, image, header, ok := parseProductForm(w, r)
	if !ok {
		return
	}
	if image != nil {
		defer func() { _ = image.Close() }()
	}

	product, err := h.products.Update(r.Context(), id, input, image, header)
	if err != nil {
		writeProductError(w, err, "update product")
		return
	}

	writeJSONSuccess(w, map[string]any{
		"product": product,
		"message": "Product updated successfully!",
	})
}

// Delete handles DELETE /api/products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Product not found")
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeProductError(w, err, "delete product")
		return
	}

	writeJSONSuccess(w, map[string]any{
		"message": "Product deleted successfully!",
	})
}

// parseIDParam parses the {id} URL parameter.
func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// parseProductForm parses the multipart form and extracts the product
// fields and the optional image file. On failure it writes the error
// response and returns ok=false.
func parseProductForm(w http.ResponseWriter, r *http.Request) (service.ProductInput, multipart.File, *multipart.FileHeader, bool) {
	// Bound the request body before any parsing happens.
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeJSONError(w, http.StatusBadRequest, service.ErrFileTooLarge.Error())
		} else {
			writeJSONError(w, http.StatusBadRequest, "Invalid form data")
		}
		return service.ProductInput{}, nil, nil, false
	}

	input := service.ProductInput{
		Name:        r.FormValue("name"),
		Price:       r.FormValue("price"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}

	image, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return input, nil, nil, true
		}
		writeJSONError(w, http.StatusBadRequest, "Invalid image upload")
		return service.ProductInput{}, nil, nil, false
	}

	return input, image, header, true
}

// writeProductError maps service errors onto the API error taxonomy.
func writeProductError(w http.ResponseWriter, err error, action string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, service.ErrInvalidFileType), errors.Is(err, service.ErrFileTooLarge):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, sql.ErrNoRows):
		writeJSONError(w, http.StatusNotFound, "Product not found")
	default:
		slog.Error("failed to "+action, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
