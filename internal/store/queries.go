// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nafeskey/shop-go/internal/model"
)

// Queries provides typed access to the database.
type Queries struct {
	db *sql.DB
}

// New creates a Queries instance bound to the given database.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateProductParams holds the fields for inserting a product.
type CreateProductParams struct {
	Name        string
	Price       float64
	Description string
	Category    string
	Image       string
	CreatedAt   time.Time
}

// CreateProduct inserts a new product row and returns the created product.
func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (model.Product, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO products (name, price, description, category, image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		arg.Name, arg.Price, arg.Description, arg.Category, arg.Image, arg.CreatedAt,
	)
	if err != nil {
		return model.Product{}, fmt.Errorf("inserting product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, fmt.Errorf("reading inserted product id: %w", err)
	}

	return q.GetProductByID(ctx, id)
}

// GetProductByID returns a single product. Returns sql.ErrNoRows if absent.
func (q *Queries) GetProductByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, price, description, category, image, created_at
		 FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Image, &p.CreatedAt)
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// ListProducts returns all products, newest first.
func (q *Queries) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, price, description, category, image, created_at
		 FROM products ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.Category, &p.Image, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// ListProductImages returns the image paths of all products. Used by the
// orphaned-upload sweep to decide which files are still referenced.
func (q *Queries) ListProductImages(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT image FROM products`)
	if err != nil {
		return nil, fmt.Errorf("listing product images: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var images []string
	for rows.Next() {
		var image string
		if err := rows.Scan(&image); err != nil {
			return nil, fmt.Errorf("scanning product image: %w", err)
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product images: %w", err)
	}
	return images, nil
}

// UpdateProductParams holds the fields for updating a product. Image is only
// written when it is non-empty; an empty Image preserves the stored value.
type UpdateProductParams struct {
	ID          int64
	Name        string
	Price       float64
	Description string
	Category    string
	Image       string
}

// UpdateProduct updates a product row and returns the number of rows
// affected. Zero rows affected means the product does not exist.
func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if arg.Image != "" {
		res, err = q.db.ExecContext(ctx,
			`UPDATE products SET name = ?, price = ?, description = ?, category = ?, image = ?
			 WHERE id = ?`,
			arg.Name, arg.Price, arg.Description, arg.Category, arg.Image, arg.ID)
	} else {
		res, err = q.db.ExecContext(ctx,
			`UPDATE products SET name = ?, price = ?, description = ?, category = ?
			 WHERE id = ?`,
			arg.Name, arg.Price, arg.Description, arg.Category, arg.ID)
	}
	if err != nil {
		return 0, fmt.Errorf("updating product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected, nil
}

// DeleteProduct removes a product row and returns the number of rows affected.
func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected, nil
}

// CreateAdminParams holds the fields for inserting an admin user.
type CreateAdminParams struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateAdmin inserts a new admin user and returns the created record.
func (q *Queries) CreateAdmin(ctx context.Context, arg CreateAdminParams) (model.AdminUser, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO admins (username, password_hash, created_at) VALUES (?, ?, ?)`,
		arg.Username, arg.PasswordHash, arg.CreatedAt,
	)
	if err != nil {
		return model.AdminUser{}, fmt.Errorf("inserting admin: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.AdminUser{}, fmt.Errorf("reading inserted admin id: %w", err)
	}

	return q.GetAdminByID(ctx, id)
}

// GetAdminByID returns a single admin user. Returns sql.ErrNoRows if absent.
func (q *Queries) GetAdminByID(ctx context.Context, id int64) (model.AdminUser, error) {
	var a model.AdminUser
	err := q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM admins WHERE id = ?`, id,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return model.AdminUser{}, err
	}
	return a, nil
}

// GetAdminByUsername returns the admin user with the given username
// (case-sensitive exact match). Returns sql.ErrNoRows if absent.
func (q *Queries) GetAdminByUsername(ctx context.Context, username string) (model.AdminUser, error) {
	var a model.AdminUser
	err := q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`, username,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return model.AdminUser{}, err
	}
	return a, nil
}

// CountAdmins returns the number of admin users.
func (q *Queries) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}
