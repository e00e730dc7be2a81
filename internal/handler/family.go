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

// FamilyHandler serves the family tree under /api/family.
type FamilyHandler struct {
	store    *store.Store
	accounts *service.AccountService
	auditor  *service.Auditor
	logger   *slog.Logger
}

// NewFamilyHandler creates a new FamilyHandler.
func NewFamilyHandler(st *store.Store, accounts *service.AccountService, auditor *service.Auditor, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{store: st, accounts: accounts, auditor: auditor, logger: logger}
}

// List handles GET /api/family.
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListFamilyMembers(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Family member")
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// Get handles GET /api/family/{id}. The response includes the names of the
// member's parents and spouse.
func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetFamilyMemberDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "Family member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Create handles POST /api/family.
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeMember(w, r, "")
	if !ok {
		return
	}
	m, err := h.store.CreateFamilyMember(r.Context(), in)
	if err != nil {
		writeStoreError(w, h.logger, err, "Family member")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditCreateFamilyEntry, "family_member", m.ID,
		model.JSONDoc{"name": m.FullName()})
	writeJSON(w, http.StatusCreated, m)
}

// Update handles PUT /api/family/{id}.
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, ok := h.decodeMember(w, r, id)
	if !ok {
		return
	}
	m, err := h.store.UpdateFamilyMember(r.Context(), id, in)
	if err != nil {
		writeStoreError(w, h.logger, err, "Family member")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditUpdateFamilyEntry, "family_member", id,
		model.JSONDoc{"name": m.FullName()})
	writeJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /api/family/{id}.
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteFamilyMember(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, err, "Family member")
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditDeleteFamilyEntry, "family_member", id, nil)
	writeMessage(w, "Family member deleted successfully")
}

type credentialsRequest struct {
	Username string `json:"username" validate:"omitempty,max=50"`
}

// ProvisionLogin handles POST /api/family/{id}/credentials. The initial
// password equals the username and must be changed at first sign-in.
func (h *FamilyHandler) ProvisionLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if r.ContentLength != 0 {
		if !decodeValid(w, r, &req) {
			return
		}
	}
	res, err := h.accounts.ProvisionMemberLogin(r.Context(), actor(r), chi.URLParam(r, "id"), req.Username)
	if err != nil {
		if errors.Is(err, service.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Username already taken")
			return
		}
		writeServiceError(w, h.logger, err, "Family member")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":            "Login credentials created successfully",
		"username":           res.Username,
		"initialPassword":    res.InitialPassword,
		"mustChangePassword": true,
	})
}

// decodeMember reads and validates a family member body. selfID is the id
// of the member being edited, or "" on create.
func (h *FamilyHandler) decodeMember(w http.ResponseWriter, r *http.Request, selfID string) (store.FamilyMemberInput, bool) {
	var in store.FamilyMemberInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return in, false
	}
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	blankToNil(&in.MaidenName, &in.Gender, &in.BirthDate, &in.DeathDate, &in.BirthPlace,
		&in.Occupation, &in.Biography, &in.ProfilePhotoURL, &in.FatherID, &in.MotherID, &in.SpouseID)

	if err := validation.Struct(&in); err != nil {
		writeValidation(w, err)
		return in, false
	}
	if in.BirthDate != nil && in.DeathDate != nil && *in.BirthDate > *in.DeathDate {
		writeValidation(w, validation.New("death_date", "gtfield", "death_date must be after birth_date"))
		return in, false
	}
	if selfID != "" {
		for field, ref := range map[string]*string{"father_id": in.FatherID, "mother_id": in.MotherID, "spouse_id": in.SpouseID} {
			if ref != nil && *ref == selfID {
				writeValidation(w, validation.New(field, "ne", field+" cannot reference the member itself"))
				return in, false
			}
		}
	}
	return in, true
}
