package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/storage"
	"github.com/francislegacy/legacy/internal/store"
	"github.com/francislegacy/legacy/internal/validation"
)

// ObjectStorage issues presigned URLs for archive files. *storage.Client
// satisfies it.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, folder, fileName, contentType string, size int64) (*storage.Upload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveHandler serves the family archive under /api/archives. Responses
// use the {success, data, count} envelope.
type ArchiveHandler struct {
	store   *store.Store
	objects ObjectStorage // nil when object storage is not configured
	logger  *slog.Logger
}

// NewArchiveHandler creates a new ArchiveHandler. objects may be nil.
func NewArchiveHandler(st *store.Store, objects ObjectStorage, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{store: st, objects: objects, logger: logger}
}

// List handles GET /api/archives. Filters whose value is "All" are ignored.
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListArchives(r.Context(), model.ArchiveFilter{
		Category: queryFilter(r, "category"),
		Type:     queryFilter(r, "type"),
		Search:   strings.TrimSpace(queryString(r, "search")),
		Decade:   queryFilter(r, "decade"),
	})
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}
	writeData(w, http.StatusOK, items, len(items), "")
}

// Stats handles GET /api/archives/stats.
func (h *ArchiveHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.ArchiveStats(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}
	writeData(w, http.StatusOK, stats, -1, "")
}

// Get handles GET /api/archives/{id}.
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetArchive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}
	writeData(w, http.StatusOK, item, -1, "")
}

// Download handles GET /api/archives/{id}/download. Items kept in object
// storage get a short-lived presigned URL; others return their file URL.
func (h *ArchiveHandler) Download(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetArchive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}

	var url string
	switch {
	case item.StorageKey != nil && *item.StorageKey != "" && h.objects != nil:
		url, err = h.objects.PresignDownload(r.Context(), *item.StorageKey)
		if err != nil {
			h.logger.Error("presign download", "archive_id", item.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to generate download URL")
			return
		}
	case item.FileURL != nil && *item.FileURL != "":
		url = *item.FileURL
	default:
		writeError(w, http.StatusBadRequest, "Archive file not available for download")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"downloadUrl": url,
		"filename":    item.Title,
	})
}

type uploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	FileSize    int64  `json:"fileSize" validate:"required,min=1"`
	Folder      string `json:"folder" validate:"omitempty,max=100"`
}

// UploadURL handles POST /api/archives/upload-url. The client PUTs the file
// to the returned URL and then creates the archive item with the key.
func (h *ArchiveHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		writeError(w, http.StatusServiceUnavailable, "File storage is not configured")
		return
	}
	var req uploadURLRequest
	if !decodeValid(w, r, &req) {
		return
	}
	if !checkUpload(w, req.ContentType, req.FileSize) {
		return
	}

	up, err := h.objects.PresignUpload(r.Context(), req.Folder, req.FileName, req.ContentType, req.FileSize)
	if err != nil {
		h.logger.Error("presign upload", "file_name", req.FileName, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate upload URL")
		return
	}
	writeData(w, http.StatusOK, up, -1, "Upload URL generated")
}

// checkUpload applies the MIME allow-list and per-type size limits.
func checkUpload(w http.ResponseWriter, contentType string, size int64) bool {
	err := storage.CheckUpload(contentType, size)
	switch {
	case err == nil:
		return true
	case errors.Is(err, storage.ErrTypeNotAllowed):
		writeError(w, http.StatusBadRequest, "File type not allowed")
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("File size exceeds limit of %dMB", storage.SizeLimit(contentType)/storage.MB))
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
	return false
}

// Create handles POST /api/archives.
func (h *ArchiveHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeArchive(w, r)
	if !ok {
		return
	}
	if in.FileURL == nil && in.StorageKey == nil {
		writeValidation(w, validation.New("file_url", "required_without", "file_url or storage_key is required"))
		return
	}
	if in.FileType == nil {
		writeValidation(w, validation.New("file_type", "required", "file_type is required"))
		return
	}
	if in.StorageKey != nil && in.FileSize != nil && !checkUpload(w, *in.FileType, *in.FileSize) {
		return
	}

	p := principal(r)
	item, err := h.store.CreateArchive(r.Context(), in, p.Kind, p.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}
	writeData(w, http.StatusCreated, item, -1, "Archive created successfully")
}

// Update handles PUT /api/archives/{id}. Only the uploader may edit.
func (h *ArchiveHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeArchive(w, r)
	if !ok {
		return
	}
	p := principal(r)
	item, err := h.store.UpdateArchive(r.Context(), chi.URLParam(r, "id"), in, p.Kind, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Archive not found or you do not have permission to update it")
		return
	}
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}
	writeData(w, http.StatusOK, item, -1, "Archive updated successfully")
}

// Delete handles DELETE /api/archives/{id}. Only the uploader may delete.
// The stored object is removed best-effort.
func (h *ArchiveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	item, err := h.store.DeleteArchive(r.Context(), chi.URLParam(r, "id"), p.Kind, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Archive not found or you do not have permission to delete it")
		return
	}
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}

	if item.StorageKey != nil && *item.StorageKey != "" && h.objects != nil {
		if err := h.objects.Delete(r.Context(), *item.StorageKey); err != nil {
			h.logger.Warn("delete stored object", "archive_id", item.ID, "key", *item.StorageKey, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, model.DataResponse{Success: true, Message: "Archive deleted successfully"})
}

// Mine handles GET /api/archives/user/my-archives.
func (h *ArchiveHandler) Mine(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	items, err := h.store.ListArchivesByUploader(r.Context(), p.Kind, p.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, "Archive")
		return
	}
	writeData(w, http.StatusOK, items, len(items), "")
}

func decodeArchive(w http.ResponseWriter, r *http.Request) (model.ArchiveInput, bool) {
	var in model.ArchiveInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return in, false
	}
	in.Title = strings.TrimSpace(in.Title)
	blankToNil(&in.Description, &in.FileURL, &in.StorageKey, &in.FileType, &in.Category,
		&in.DateTaken, &in.Location, &in.PersonRelated)
	if err := validation.Struct(&in); err != nil {
		writeValidation(w, err)
		return in, false
	}
	return in, true
}
