package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
	"github.com/francislegacy/legacy/internal/validation"
)

// SubmissionHandler serves member content submissions and their review.
// The admin moderation routes reuse List and Review.
type SubmissionHandler struct {
	store   *store.Store
	auditor *service.Auditor
	logger  *slog.Logger
}

func NewSubmissionHandler(st *store.Store, auditor *service.Auditor, logger *slog.Logger) *SubmissionHandler {
	return &SubmissionHandler{store: st, auditor: auditor, logger: logger}
}

// List handles GET /api/submissions. ?status= narrows the listing.
func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	status := queryFilter(r, "status")
	if status != "" && status != model.SubmissionPending && status != model.SubmissionApproved && status != model.SubmissionRejected {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	subs, err := h.store.ListSubmissions(r.Context(), status)
	if err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Mine handles GET /api/submissions/my-submissions.
func (h *SubmissionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	subs, err := h.store.ListSubmissionsBySubmitter(r.Context(), p.Kind, p.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Create handles POST /api/submissions.
func (h *SubmissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in model.SubmissionInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Type == "" || in.Title == "" || len(in.Content) == 0 {
		writeError(w, http.StatusBadRequest, "Type, title, and content are required")
		return
	}
	if err := validation.Struct(&in); err != nil {
		writeValidation(w, err)
		return
	}

	p := principal(r)
	sub, err := h.store.CreateSubmission(r.Context(), in, p.Kind, p.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditCreateSubmission, "content_submission", sub.ID,
		model.JSONDoc{"type": sub.Type, "title": sub.Title, "submitterType": p.Kind.UserType(), "submitterId": p.ID})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Submission created successfully",
		"submission": sub,
	})
}

// Stats handles GET /api/submissions/stats/overview.
func (h *SubmissionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.SubmissionStats(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Get handles GET /api/submissions/{id}.
func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Review handles PATCH /api/submissions/{id}/review and
// PUT /api/admin/submissions/{id}. Approval publishes the content and
// rejection withdraws it, atomically with the status change.
func (h *SubmissionHandler) Review(w http.ResponseWriter, r *http.Request) {
	var review model.SubmissionReview
	if err := readJSON(r, &review); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if review.Status != model.SubmissionApproved && review.Status != model.SubmissionRejected {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	blankToNil(&review.ReviewNotes)

	id := chi.URLParam(r, "id")
	sub, err := h.store.ReviewSubmission(r.Context(), id, review, principal(r).ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Submission not found")
			return
		}
		h.logger.Error("review submission", "submission_id", id, "status", review.Status, "error", err)
		if review.Status == model.SubmissionApproved {
			writeError(w, http.StatusInternalServerError, "Failed to create approved content")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	details := model.JSONDoc{"status": review.Status, "type": sub.Type}
	if review.ReviewNotes != nil {
		details["reviewNotes"] = *review.ReviewNotes
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditReviewSubmission, "content_submission", id, details)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Submission " + review.Status + " successfully",
		"submission": sub,
	})
}

// Delete handles DELETE /api/submissions/{id}. The submitter or an admin
// may delete, and only while the submission is pending.
func (h *SubmissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub, err := h.store.GetSubmission(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}

	p := principal(r)
	owner := sub.SubmitterKind == p.Kind && sub.SubmittedBy == p.ID
	if !p.IsAdmin() && !owner {
		writeError(w, http.StatusForbidden, "Not authorized to delete this submission")
		return
	}
	if sub.Status != model.SubmissionPending {
		writeError(w, http.StatusBadRequest, "Can only delete pending submissions")
		return
	}

	if err := h.store.DeleteSubmission(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, err, "Submission")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditDeleteSubmission, "content_submission", id,
		model.JSONDoc{"type": sub.Type, "title": sub.Title})
	writeMessage(w, "Submission deleted successfully")
}
