// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// login protection, and CSRF handling.
package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/nafeskey/shop-go/internal/model"
	"github.com/nafeskey/shop-go/internal/session"
	"github.com/nafeskey/shop-go/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyAdmin is the context key holding the authenticated admin user.
const ContextKeyAdmin ContextKey = "admin"

// writeJSONError writes a JSON error response with an "error" message field.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}

// RequireAdmin creates middleware that gates mutating routes behind a valid
// admin session. It rejects with 401 before the wrapped handler runs, so no
// side effect (file write, DB write) can happen unauthenticated. The admin
// record is loaded into the request context for downstream handlers.
func RequireAdmin(sm *scs.SessionManager, db *sql.DB) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminID := sm.GetInt64(r.Context(), session.KeyAdminID)
			if adminID == 0 {
				writeJSONError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			admin, err := queries.GetAdminByID(r.Context(), adminID)
			if err != nil {
				// Stale session referencing a removed admin: destroy it.
				_ = sm.Destroy(r.Context())
				writeJSONError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAdmin, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdmin retrieves the authenticated admin from the request context.
// Returns nil if no admin is in context.
func GetAdmin(r *http.Request) *model.AdminUser {
	admin, ok := r.Context().Value(ContextKeyAdmin).(model.AdminUser)
	if !ok {
		return nil
	}
	return &admin
}
