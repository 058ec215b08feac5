// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/nafeskey/shop-go/internal/auth"
	"github.com/nafeskey/shop-go/internal/middleware"
	"github.com/nafeskey/shop-go/internal/session"
	"github.com/nafeskey/shop-go/internal/store"
)

// AuthHandler handles the admin login, logout and session check routes.
type AuthHandler struct {
	queries         *store.Queries
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *sql.DB, sm *scs.SessionManager, lp *middleware.LoginProtection) *AuthHandler {
	return &AuthHandler{
		queries:         store.New(db),
		sessionManager:  sm,
		loginProtection: lp,
	}
}

// loginRequest is the JSON body for POST /api/admin/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/admin/login. On success a new session bound to a
// fresh token is created and conveyed via the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if h.loginProtection != nil {
		if !h.loginProtection.CheckIPRateLimit(clientIP(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "Too many login attempts, slow down")
			return
		}
		if locked, _ := h.loginProtection.IsAccountLocked(req.Username); locked {
			slog.Warn("login attempt on locked account", "username", req.Username, "ip", clientIP(r))
			writeJSONError(w, http.StatusTooManyRequests, "Account temporarily locked, try again later")
			return
		}
	}

	admin, err := h.queries.GetAdminByUsername(r.Context(), req.Username)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("database error during login", "error", err)
		}
		// Record the failure even for unknown usernames to prevent enumeration.
		h.recordFailure(req.Username)
		writeJSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	valid, err := auth.CheckPassword(req.Password, admin.PasswordHash)
	if err != nil {
		slog.Error("password check error", "error", err)
		writeJSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if !valid {
		slog.Debug("invalid password attempt", "username", req.Username)
		h.recordFailure(req.Username)
		writeJSONError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	// Renew the token on privilege change to prevent session fixation.
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		slog.Error("session renew error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	h.sessionManager.Put(r.Context(), session.KeyAdminID, admin.ID)

	if h.loginProtection != nil {
		h.loginProtection.RecordSuccessfulLogin(req.Username)
	}
	slog.Info("admin logged in", "username", admin.Username)

	writeJSONSuccess(w, map[string]any{
		"message":  "Login successful",
		"username": admin.Username,
	})
}

// Logout handles POST /api/admin/logout. Destroying an already-absent
// session still reports success.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		slog.Error("session destroy error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	writeJSONSuccess(w, map[string]any{
		"message": "Logout successful",
	})
}

// Check handles GET /api/admin/check. It never fails: missing, expired or
// invalid sessions report authenticated=false.
func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	adminID := h.sessionManager.GetInt64(r.Context(), session.KeyAdminID)
	if adminID == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	admin, err := h.queries.GetAdminByID(r.Context(), adminID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      admin.Username,
	})
}

func (h *AuthHandler) recordFailure(username string) {
	if h.loginProtection != nil {
		h.loginProtection.RecordFailedAttempt(username)
	}
}

// clientIP returns the remote IP without the port. Behind the RealIP
// middleware RemoteAddr already holds the client address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
