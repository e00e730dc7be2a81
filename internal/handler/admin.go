package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/storage"
	"github.com/francislegacy/legacy/internal/store"
)

// AdminHandler serves the administrator console under /api/admin.
type AdminHandler struct {
	store    *store.Store
	accounts *service.AccountService
	auth     *service.AuthService
	auditor  *service.Auditor
	quota    int64
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler. quota is the object storage
// allowance reported by the storage stats endpoint; zero selects the
// default.
func NewAdminHandler(st *store.Store, accounts *service.AccountService, auth *service.AuthService, auditor *service.Auditor, quota int64, logger *slog.Logger) *AdminHandler {
	if quota <= 0 {
		quota = storage.DefaultQuota
	}
	return &AdminHandler{store: st, accounts: accounts, auth: auth, auditor: auditor, quota: quota, logger: logger}
}

// Dashboard handles GET /api/admin/dashboard/stats.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DashboardStats(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListAdmins(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type createdUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// CreateUser handles POST /api/admin/users. The temporary password is
// mailed to the user and only echoed back in development.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in service.NewUserInput
	if !decodeValid(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	blankToNil(&in.Phone, &in.BirthDate)

	res, err := h.accounts.CreateUser(r.Context(), actor(r), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "User with this email")
		return
	}

	body := map[string]interface{}{
		"message": "Family member account created successfully",
		"user": createdUser{
			ID:        res.User.ID,
			Email:     res.User.Email,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
			Role:      res.User.Role,
			CreatedAt: res.User.CreatedAt.UTC().Format(time.RFC3339),
		},
		"emailSent": res.EmailSent,
	}
	if res.TempPassword != "" {
		body["tempPassword"] = res.TempPassword
	}
	writeJSON(w, http.StatusCreated, body)
}

// UpdateUser handles PUT /api/admin/users/{id}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateUserInput
	if !decodeValid(w, r, &in) {
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	blankToNil(&in.Phone, &in.BirthDate)

	user, err := h.accounts.UpdateUser(r.Context(), actor(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    user,
	})
}

// DeleteUser handles DELETE /api/admin/users/{id}. Accounts are deactivated,
// never removed.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeactivateUser(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	writeMessage(w, "User deactivated successfully")
}

// ResetPassword handles POST /api/admin/users/{id}/reset-password. The
// target is an admin-table account unless ?kind=member names a family
// member login.
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return
	}
	kind := model.KindAdmin
	if k := queryString(r, "kind"); k != "" {
		kind = model.PrincipalKind(k)
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "kind must be admin or member")
			return
		}
	}

	res, err := h.accounts.ResetPassword(r.Context(), actor(r), kind, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "User")
		return
	}
	body := map[string]interface{}{
		"message":             "Password reset successfully",
		"emailSent":           res.EmailSent,
		"sessionsInvalidated": res.SessionsInvalidated,
	}
	if res.NewPassword != "" {
		body["newPassword"] = res.NewPassword
	}
	writeJSON(w, http.StatusOK, body)
}

// ---------------------------------------------------------------------------
// Audit, storage and login limiter
// ---------------------------------------------------------------------------

// AuditLog handles GET /api/admin/audit-log?page=&limit=.
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	page := clampInt(queryInt(r, "page", 1), 1, 1<<20)
	limit := clampInt(queryInt(r, "limit", 50), 1, 200)

	entries, total, err := h.store.ListAuditLog(r.Context(), page, limit)
	if err != nil {
		writeStoreError(w, h.logger, err, "Audit log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":       entries,
		"pagination": model.NewPagination(page, limit, total),
	})
}

// StorageStats handles GET /api/admin/storage/stats.
func (h *AdminHandler) StorageStats(w http.ResponseWriter, r *http.Request) {
	usage, err := h.store.ArchiveUsageByType(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Storage statistics")
		return
	}
	writeJSON(w, http.StatusOK, storage.Summarize(usage, h.quota))
}

// RateLimits handles GET /api/admin/rate-limits.
func (h *AdminHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.auth.RateLimitStats(r.Context()))
}

// ClearRateLimit handles DELETE /api/admin/rate-limits/{handle}.
func (h *AdminHandler) ClearRateLimit(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(chi.URLParam(r, "handle"))
	if handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}
	h.auth.ClearRateLimit(r.Context(), handle)
	h.auditor.Record(r.Context(), actor(r), model.AuditClearRateLimit, "rate_limit", handle,
		model.JSONDoc{"handle": handle})
	writeMessage(w, "Rate limit cleared")
}
