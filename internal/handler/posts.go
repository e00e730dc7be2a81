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

// PostHandler serves one post table: blog posts under /api/blog or news
// articles under /api/news.
type PostHandler struct {
	store   *store.Store
	table   store.PostTable
	entity  string // "Blog post", "News article"
	auditor *service.Auditor
	logger  *slog.Logger
}

// NewBlogHandler creates a PostHandler over blog_posts.
func NewBlogHandler(st *store.Store, auditor *service.Auditor, logger *slog.Logger) *PostHandler {
	return &PostHandler{store: st, table: store.BlogPosts, entity: "Blog post", auditor: auditor, logger: logger}
}

// NewNewsHandler creates a PostHandler over news_articles.
func NewNewsHandler(st *store.Store, auditor *service.Auditor, logger *slog.Logger) *PostHandler {
	return &PostHandler{store: st, table: store.NewsArticles, entity: "News article", auditor: auditor, logger: logger}
}

// includeDrafts reports whether an administrator asked for drafts.
func includeDrafts(r *http.Request) bool {
	return principal(r).IsAdmin() && queryString(r, "status") == "all"
}

// List handles GET /. Only published posts are returned unless an admin
// passes ?status=all.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListPosts(r.Context(), h.table, includeDrafts(r))
	if err != nil {
		writeStoreError(w, h.logger, err, h.entity)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// Get handles GET /{id}, where the path segment is the post slug. Admins
// can read drafts.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetPostBySlug(r.Context(), h.table, chi.URLParam(r, "id"), principal(r).IsAdmin())
	if err != nil {
		writeStoreError(w, h.logger, err, h.entity)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Create handles POST /.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePost(w, r)
	if !ok {
		return
	}
	p := principal(r)
	post, err := h.store.CreatePost(r.Context(), h.table, in, p.Kind, p.ID)
	if err != nil {
		writeStoreError(w, h.logger, err, h.entity)
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditCreateContent, string(h.table), post.ID,
		model.JSONDoc{"title": post.Title, "status": post.Status})
	writeJSON(w, http.StatusCreated, post)
}

// Update handles PUT /{id}.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePost(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	post, err := h.store.UpdatePost(r.Context(), h.table, id, in)
	if err != nil {
		writeStoreError(w, h.logger, err, h.entity)
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditUpdateContent, string(h.table), id,
		model.JSONDoc{"title": post.Title, "status": post.Status})
	writeJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /{id}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeletePost(r.Context(), h.table, id); err != nil {
		writeStoreError(w, h.logger, err, h.entity)
		return
	}
	h.auditor.Record(r.Context(), actor(r), model.AuditDeleteContent, string(h.table), id, nil)
	writeMessage(w, h.entity+" deleted successfully")
}

// decodePost reads a post body. A missing slug is derived from the title.
func (h *PostHandler) decodePost(w http.ResponseWriter, r *http.Request) (model.PostInput, bool) {
	var in model.PostInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return in, false
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = store.Slugify(in.Title)
	}
	blankToNil(&in.Excerpt, &in.FeaturedImageURL)
	if err := validation.Struct(&in); err != nil {
		writeValidation(w, err)
		return in, false
	}
	return in, true
}
