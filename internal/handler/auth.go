package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/francislegacy/legacy/internal/password"
	"github.com/francislegacy/legacy/internal/server/middleware"
	"github.com/francislegacy/legacy/internal/service"
)

// AuthHandler serves the /api/auth endpoints: login, logout, password
// change and the current principal.
type AuthHandler struct {
	auth    *service.AuthService
	cookies middleware.CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, cookies middleware.CookieConfig, logger *slog.Logger) *AuthHandler {
	if cookies.MaxAge <= 0 {
		cookies.MaxAge = auth.SessionTTL()
	}
	return &AuthHandler{auth: auth, cookies: cookies, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username/email and password are required")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password, middleware.ClientMeta(r))
	if err != nil {
		var rl *service.RateLimitError
		switch {
		case errors.As(err, &rl):
			writeError(w, http.StatusTooManyRequests, "Too many authentication attempts, please try again later.",
				map[string]interface{}{
					"remainingAttempts": rl.RemainingAttempts,
					"retryAfter":        retryAfter(rl),
				})
		case errors.Is(err, service.ErrAccountDisabled):
			writeError(w, http.StatusUnauthorized, "Account is disabled")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid username/email or password")
		case errors.Is(err, service.ErrStoreUnavailable):
			h.logger.Error("login: store unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.cookies.Set(w, res.Token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":      res.Principal.View(),
		"expiresAt": res.ExpiresAt,
		"message":   "Login successful",
	})
}

// retryAfter renders the block window the way clients display it.
func retryAfter(rl *service.RateLimitError) string {
	mins := int(rl.RetryAfter.Minutes())
	if mins <= 1 {
		return "1 minute"
	}
	return strconv.Itoa(mins) + " minutes"
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout: deactivate session", "error", err)
		}
	}
	h.cookies.Clear(w)
	writeMessage(w, "Logout successful")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles POST /api/auth/change-password. Every session of
// the caller ends, including the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var req changePasswordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "Current password and new password are required")
		return
	}
	if len(req.NewPassword) < password.MinLength {
		writeError(w, http.StatusBadRequest, "New password must be at least 8 characters long")
		return
	}

	res, err := h.auth.ChangePassword(r.Context(), p.Kind, p.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		case errors.Is(err, service.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "New password must be at least 8 characters long")
		case errors.Is(err, service.ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, "Authentication required")
		case errors.Is(err, service.ErrStoreUnavailable):
			h.logger.Error("change password: store unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
		default:
			h.logger.Error("change password failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":             "Password changed successfully. Please log in again.",
		"sessionsInvalidated": true,
		"sessionCount":        res.SessionsInvalidated,
		"rateLimitCleared":    res.RateLimitCleared,
	})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": principal(r).View(),
	})
}
