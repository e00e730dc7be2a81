package model

import "time"

// Submission types.
const (
	SubmissionNews    = "news"
	SubmissionBlog    = "blog"
	SubmissionArchive = "archive"
)

// Submission statuses.
const (
	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Submission is content proposed by a member and waiting for, or having
// received, an administrator's review.
type Submission struct {
	ID                 string        `json:"id" db:"id"`
	Type               string        `json:"type" db:"type"`
	Title              string        `json:"title" db:"title"`
	Content            JSONDoc       `json:"content" db:"content"`
	Status             string        `json:"status" db:"status"`
	SubmitterKind      PrincipalKind `json:"submitter_type" db:"submitter_kind"`
	SubmittedBy        string        `json:"submitted_by" db:"submitted_by"`
	ReviewedBy         *string       `json:"reviewed_by" db:"reviewed_by"`
	ReviewNotes        *string       `json:"review_notes" db:"review_notes"`
	ReviewedAt         *time.Time    `json:"reviewed_at" db:"reviewed_at"`
	PublishedBlogID    *string       `json:"published_blog_id" db:"published_blog_id"`
	PublishedNewsID    *string       `json:"published_news_id" db:"published_news_id"`
	PublishedArchiveID *string       `json:"published_archive_id" db:"published_archive_id"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`

	SubmitterName *string `json:"submitter_name,omitempty" db:"submitter_name"`
}

// HasPublishedContent reports whether approval produced a content row.
func (s *Submission) HasPublishedContent() bool {
	return s.PublishedBlogID != nil || s.PublishedNewsID != nil || s.PublishedArchiveID != nil
}

// SubmissionInput is the body of a new submission.
type SubmissionInput struct {
	Type    string  `json:"type" validate:"required,oneof=news blog archive"`
	Title   string  `json:"title" validate:"required,max=200"`
	Content JSONDoc `json:"content" validate:"required"`
}

// SubmissionReview is an administrator's decision on a submission.
type SubmissionReview struct {
	Status      string  `json:"status" validate:"required,oneof=approved rejected"`
	ReviewNotes *string `json:"reviewNotes"`
}

// SubmissionStats counts submissions per status.
type SubmissionStats struct {
	Pending  int `json:"pending" db:"pending"`
	Approved int `json:"approved" db:"approved"`
	Rejected int `json:"rejected" db:"rejected"`
	Total    int `json:"total" db:"total"`
}
