package store

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

// PostTable names one of the two tables holding model.Post rows.
type PostTable string

const (
	BlogPosts    PostTable = "blog_posts"
	NewsArticles PostTable = "news_articles"
)

const postSelect = `SELECT p.id, p.title, p.slug, p.excerpt, p.content, p.featured_image_url,
	p.author_id, p.author_kind, p.status, p.published_at, p.created_at, p.updated_at,
	COALESCE(a.first_name, fm.first_name) AS author_first_name,
	COALESCE(a.last_name, fm.last_name) AS author_last_name
	FROM %s p
	LEFT JOIN admins a ON p.author_kind = 'admin' AND p.author_id = a.id
	LEFT JOIN family_members fm ON p.author_kind = 'member' AND p.author_id = fm.id`

func postQuery(table PostTable, where string) string {
	return strings.Replace(postSelect, "%s", string(table), 1) + " " + where
}

// ListPosts returns published posts, newest first. With includeDrafts all
// posts are returned.
func (s *Store) ListPosts(ctx context.Context, table PostTable, includeDrafts bool) ([]model.Post, error) {
	posts := []model.Post{}
	var err error
	if includeDrafts {
		err = selectAll(ctx, s.db, &posts, postQuery(table, "ORDER BY p.created_at DESC"))
	} else {
		err = selectAll(ctx, s.db, &posts,
			postQuery(table, "WHERE p.status = ? ORDER BY p.published_at DESC"), model.PostPublished)
	}
	if err != nil {
		return nil, wrap("list "+string(table), err)
	}
	return posts, nil
}

// GetPostBySlug returns a post by slug. Drafts are only found with
// includeDrafts.
func (s *Store) GetPostBySlug(ctx context.Context, table PostTable, slug string, includeDrafts bool) (*model.Post, error) {
	var p model.Post
	var err error
	if includeDrafts {
		err = get(ctx, s.db, &p, postQuery(table, "WHERE p.slug = ?"), slug)
	} else {
		err = get(ctx, s.db, &p, postQuery(table, "WHERE p.slug = ? AND p.status = ?"), slug, model.PostPublished)
	}
	if err != nil {
		return nil, wrap("get "+string(table)+" by slug", err)
	}
	return &p, nil
}

// GetPost returns a post by id regardless of status.
func (s *Store) GetPost(ctx context.Context, table PostTable, id string) (*model.Post, error) {
	return getPost(ctx, s.db, table, id)
}

func getPost(ctx context.Context, e execer, table PostTable, id string) (*model.Post, error) {
	var p model.Post
	if err := get(ctx, e, &p, postQuery(table, "WHERE p.id = ?"), id); err != nil {
		return nil, wrap("get "+string(table), err)
	}
	return &p, nil
}

// CreatePost inserts a post authored by the given principal. Published posts
// get published_at stamped.
func (s *Store) CreatePost(ctx context.Context, table PostTable, in model.PostInput, authorKind model.PrincipalKind, authorID string) (*model.Post, error) {
	id, err := insertPost(ctx, s.db, table, in, authorKind, authorID)
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, table, id)
}

func insertPost(ctx context.Context, e execer, table PostTable, in model.PostInput, authorKind model.PrincipalKind, authorID string) (string, error) {
	if in.Status == "" {
		in.Status = model.PostDraft
	}
	id := uuid.NewString()
	t := now()
	var publishedAt interface{}
	if in.Status == model.PostPublished {
		publishedAt = t
	}
	_, err := exec(ctx, e, `INSERT INTO `+string(table)+`
		(id, title, slug, excerpt, content, featured_image_url, author_id, author_kind, status,
		 published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Slug, in.Excerpt, in.Content, in.FeaturedImageURL, authorID, authorKind,
		in.Status, publishedAt, t, t)
	if err != nil {
		return "", wrap("insert "+string(table), err)
	}
	return id, nil
}

// UpdatePost rewrites a post. published_at is set the first time the post
// becomes published and kept afterwards.
func (s *Store) UpdatePost(ctx context.Context, table PostTable, id string, in model.PostInput) (*model.Post, error) {
	current, err := s.GetPost(ctx, table, id)
	if err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = current.Status
	}
	t := now()
	publishedAt := current.PublishedAt
	if in.Status == model.PostPublished && publishedAt == nil {
		publishedAt = &t
	}

	res, err := exec(ctx, s.db, `UPDATE `+string(table)+`
		SET title = ?, slug = ?, excerpt = ?, content = ?, featured_image_url = ?, status = ?,
		    published_at = ?, updated_at = ?
		WHERE id = ?`,
		in.Title, in.Slug, in.Excerpt, in.Content, in.FeaturedImageURL, in.Status, publishedAt, t, id)
	if err != nil {
		return nil, wrap("update "+string(table), err)
	}
	if err := requireRows("update "+string(table), res); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, table, id)
}

// DeletePost removes a post.
func (s *Store) DeletePost(ctx context.Context, table PostTable, id string) error {
	res, err := exec(ctx, s.db, "DELETE FROM "+string(table)+" WHERE id = ?", id)
	if err != nil {
		return wrap("delete "+string(table), err)
	}
	return requireRows("delete "+string(table), res)
}

var (
	slugStrip   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugHyphens = regexp.MustCompile(`-+`)
)

// Slugify turns a title into a URL slug: lower case, punctuation removed,
// whitespace runs replaced by single hyphens.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// uniqueSlug returns base when it is free in table, otherwise base with a
// short random suffix.
func uniqueSlug(ctx context.Context, e execer, table PostTable, base string) (string, error) {
	if base == "" {
		base = "post"
	}
	var n int
	if err := get(ctx, e, &n, "SELECT COUNT(*) FROM "+string(table)+" WHERE slug = ?", base); err != nil {
		return "", wrap("check slug", err)
	}
	if n == 0 {
		return base, nil
	}
	return base + "-" + uuid.NewString()[:8], nil
}
