package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
	"github.com/francislegacy/legacy/internal/validation"
)

// TimelineHandler serves /api/timeline.
type TimelineHandler struct {
	store   *store.Store
	auditor *service.Auditor
	logger  *slog.Logger
}

func NewTimelineHandler(st *store.Store, auditor *service.Auditor, logger *slog.Logger) *TimelineHandler {
	return &TimelineHandler{store: st, auditor: auditor, logger: logger}
}

func (h *TimelineHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListTimeline(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Range handles GET /api/timeline/range?startDate=&endDate=.
func (h *TimelineHandler) Range(w http.ResponseWriter, r *http.Request) {
	start, end := queryString(r, "startDate"), queryString(r, "endDate")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "Start date and end date are required")
		return
	}
	if !validation.IsISODate(start) || !validation.IsISODate(end) {
		writeError(w, http.StatusBadRequest, "Dates must be formatted as YYYY-MM-DD")
		return
	}
	events, err := h.store.ListTimelineRange(r.Context(), start, end)
	if err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *TimelineHandler) ByType(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListTimelineByType(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.GetTimelineEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *TimelineHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTimeline(w, r)
	if !ok {
		return
	}
	ev, err := h.store.CreateTimelineEvent(r.Context(), in, principal(r).ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditCreateContent, "timeline_event", ev.ID,
		model.JSONDoc{"title": ev.Title})
	writeJSON(w, http.StatusCreated, ev)
}

func (h *TimelineHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeTimeline(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	ev, err := h.store.UpdateTimelineEvent(r.Context(), id, in)
	if err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditUpdateContent, "timeline_event", id,
		model.JSONDoc{"title": ev.Title})
	writeJSON(w, http.StatusOK, ev)
}

func (h *TimelineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteTimelineEvent(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, err, "Timeline event")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditDeleteContent, "timeline_event", id, nil)
	writeMessage(w, "Timeline event deleted successfully")
}

func decodeTimeline(w http.ResponseWriter, r *http.Request) (model.TimelineInput, bool) {
	var in model.TimelineInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return in, false
	}
	in.Title = strings.TrimSpace(in.Title)
	blankToNil(&in.Description, &in.EventType, &in.Location, &in.AssociatedMemberID, &in.ImageURL)
	if err := validation.Struct(&in); err != nil {
		writeValidation(w, err)
		return in, false
	}
	return in, true
}
