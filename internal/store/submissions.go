package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

const submissionSelect = `SELECT cs.id, cs.type, cs.title, cs.content, cs.status, cs.submitter_kind,
	cs.submitted_by, cs.reviewed_by, cs.review_notes, cs.reviewed_at, cs.published_blog_id,
	cs.published_news_id, cs.published_archive_id, cs.created_at, cs.updated_at,
	COALESCE(a.first_name || ' ' || a.last_name, fm.first_name || ' ' || fm.last_name) AS submitter_name
	FROM content_submissions cs
	LEFT JOIN admins a ON cs.submitter_kind = 'admin' AND cs.submitted_by = a.id
	LEFT JOIN family_members fm ON cs.submitter_kind = 'member' AND cs.submitted_by = fm.id`

// ListSubmissions returns submissions newest first, optionally restricted to
// one status.
func (s *Store) ListSubmissions(ctx context.Context, status string) ([]model.Submission, error) {
	subs := []model.Submission{}
	var err error
	if status == "" {
		err = selectAll(ctx, s.db, &subs, submissionSelect+" ORDER BY cs.created_at DESC")
	} else {
		err = selectAll(ctx, s.db, &subs, submissionSelect+" WHERE cs.status = ? ORDER BY cs.created_at DESC", status)
	}
	if err != nil {
		return nil, wrap("list submissions", err)
	}
	return subs, nil
}

// ListSubmissionsBySubmitter returns the submissions of one principal.
func (s *Store) ListSubmissionsBySubmitter(ctx context.Context, kind model.PrincipalKind, id string) ([]model.Submission, error) {
	subs := []model.Submission{}
	q := submissionSelect + " WHERE cs.submitter_kind = ? AND cs.submitted_by = ? ORDER BY cs.created_at DESC"
	if err := selectAll(ctx, s.db, &subs, q, kind, id); err != nil {
		return nil, wrap("list user submissions", err)
	}
	return subs, nil
}

// GetSubmission returns a submission by id.
func (s *Store) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	return getSubmission(ctx, s.db, id)
}

func getSubmission(ctx context.Context, e execer, id string) (*model.Submission, error) {
	var sub model.Submission
	if err := get(ctx, e, &sub, submissionSelect+" WHERE cs.id = ?", id); err != nil {
		return nil, wrap("get submission", err)
	}
	return &sub, nil
}

// CreateSubmission stores a pending submission from a principal.
func (s *Store) CreateSubmission(ctx context.Context, in model.SubmissionInput, kind model.PrincipalKind, submitterID string) (*model.Submission, error) {
	id := uuid.NewString()
	t := now()
	_, err := exec(ctx, s.db, `INSERT INTO content_submissions
		(id, type, title, content, status, submitter_kind, submitted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Type, in.Title, in.Content, model.SubmissionPending, kind, submitterID, t, t)
	if err != nil {
		return nil, wrap("insert submission", err)
	}
	return s.GetSubmission(ctx, id)
}

// DeleteSubmission removes a submission row.
func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	res, err := exec(ctx, s.db, "DELETE FROM content_submissions WHERE id = ?", id)
	if err != nil {
		return wrap("delete submission", err)
	}
	return requireRows("delete submission", res)
}

// SubmissionStats counts submissions per status.
func (s *Store) SubmissionStats(ctx context.Context) (*model.SubmissionStats, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := selectAll(ctx, s.db, &rows, "SELECT status, COUNT(*) AS count FROM content_submissions GROUP BY status"); err != nil {
		return nil, wrap("submission stats", err)
	}
	var st model.SubmissionStats
	for _, r := range rows {
		switch r.Status {
		case model.SubmissionPending:
			st.Pending = r.Count
		case model.SubmissionApproved:
			st.Approved = r.Count
		case model.SubmissionRejected:
			st.Rejected = r.Count
		}
		st.Total += r.Count
	}
	return &st, nil
}

// ReviewSubmission records an administrator's decision. Approval publishes
// the submitted content (blog post, news article or archive item) and links
// it to the submission; rejection removes anything previously published from
// it. Both happen in the same transaction as the status change.
func (s *Store) ReviewSubmission(ctx context.Context, id string, review model.SubmissionReview, reviewerID string) (*model.Submission, error) {
	err := s.withTx(ctx, func(tx execer) error {
		sub, err := getSubmission(ctx, tx, id)
		if err != nil {
			return err
		}

		switch review.Status {
		case model.SubmissionApproved:
			if !sub.HasPublishedContent() {
				if err := publishSubmission(ctx, tx, sub, reviewerID); err != nil {
					return err
				}
			}
		case model.SubmissionRejected:
			if err := unpublishSubmission(ctx, tx, sub); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown review status %q", review.Status)
		}

		t := now()
		_, err = exec(ctx, tx, `UPDATE content_submissions
			SET status = ?, reviewed_by = ?, review_notes = ?, reviewed_at = ?, updated_at = ?
			WHERE id = ?`,
			review.Status, reviewerID, review.ReviewNotes, t, t, id)
		if err != nil {
			return wrap("update submission status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSubmission(ctx, id)
}

func publishSubmission(ctx context.Context, tx execer, sub *model.Submission, reviewerID string) error {
	c := sub.Content
	title := c.String("title")
	if title == "" {
		title = sub.Title
	}

	switch sub.Type {
	case model.SubmissionBlog, model.SubmissionNews:
		table, column := BlogPosts, "published_blog_id"
		if sub.Type == model.SubmissionNews {
			table, column = NewsArticles, "published_news_id"
		}
		slug, err := uniqueSlug(ctx, tx, table, Slugify(title))
		if err != nil {
			return err
		}
		in := model.PostInput{
			Title:   title,
			Slug:    slug,
			Excerpt: optString(c, "excerpt"),
			Content: c.String("content"),
			Status:  model.PostPublished,
		}
		if img := optString(c, "featuredImageUrl"); img != nil {
			in.FeaturedImageURL = img
		}
		postID, err := insertPost(ctx, tx, table, in, sub.SubmitterKind, sub.SubmittedBy)
		if err != nil {
			return err
		}
		return linkPublished(ctx, tx, sub.ID, column, postID)

	case model.SubmissionArchive:
		in := model.ArchiveInput{
			Title:         title,
			Description:   optString(c, "description"),
			FileURL:       optString(c, "fileUrl"),
			StorageKey:    optString(c, "storageKey"),
			FileType:      optString(c, "fileType"),
			FileSize:      optInt64(c, "fileSize"),
			Category:      optString(c, "category"),
			Tags:          tagsOf(c, "tags"),
			DateTaken:     optString(c, "dateTaken"),
			Location:      optString(c, "location"),
			PersonRelated: optString(c, "personRelated"),
			Status:        model.ArchivePublished,
		}
		archiveID, err := insertArchive(ctx, tx, in, sub.SubmitterKind, sub.SubmittedBy, &reviewerID)
		if err != nil {
			return err
		}
		return linkPublished(ctx, tx, sub.ID, "published_archive_id", archiveID)
	}
	return fmt.Errorf("unknown submission type %q", sub.Type)
}

func linkPublished(ctx context.Context, tx execer, submissionID, column, contentID string) error {
	if _, err := exec(ctx, tx, "UPDATE content_submissions SET "+column+" = ? WHERE id = ?", contentID, submissionID); err != nil {
		return wrap("link published content", err)
	}
	return nil
}

func unpublishSubmission(ctx context.Context, tx execer, sub *model.Submission) error {
	targets := []struct {
		id     *string
		table  string
		column string
	}{
		{sub.PublishedNewsID, string(NewsArticles), "published_news_id"},
		{sub.PublishedBlogID, string(BlogPosts), "published_blog_id"},
		{sub.PublishedArchiveID, "archive_items", "published_archive_id"},
	}
	for _, t := range targets {
		if t.id == nil {
			continue
		}
		if _, err := exec(ctx, tx, "DELETE FROM "+t.table+" WHERE id = ?", *t.id); err != nil {
			return wrap("delete published content", err)
		}
		if _, err := exec(ctx, tx, "UPDATE content_submissions SET "+t.column+" = NULL WHERE id = ?", sub.ID); err != nil {
			return wrap("unlink published content", err)
		}
	}
	return nil
}

func optString(d model.JSONDoc, key string) *string {
	if v := d.String(key); v != "" {
		return &v
	}
	return nil
}

func optInt64(d model.JSONDoc, key string) *int64 {
	switch v := d[key].(type) {
	case float64:
		n := int64(v)
		return &n
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	}
	return nil
}

func tagsOf(d model.JSONDoc, key string) model.Tags {
	tags := model.Tags{}
	raw, ok := d[key].([]interface{})
	if !ok {
		return tags
	}
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			tags = append(tags, s)
		}
	}
	return tags
}
