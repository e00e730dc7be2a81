package model

import "time"

// Post statuses shared by blog posts and news articles.
const (
	PostDraft     = "draft"
	PostPublished = "published"
)

// Post is a blog post or news article. Both live in tables of identical
// shape (blog_posts, news_articles).
type Post struct {
	ID               string        `json:"id" db:"id"`
	Title            string        `json:"title" db:"title"`
	Slug             string        `json:"slug" db:"slug"`
	Excerpt          *string       `json:"excerpt" db:"excerpt"`
	Content          string        `json:"content" db:"content"`
	FeaturedImageURL *string       `json:"featured_image_url" db:"featured_image_url"`
	AuthorID         *string       `json:"author_id" db:"author_id"`
	AuthorKind       PrincipalKind `json:"author_kind" db:"author_kind"`
	Status           string        `json:"status" db:"status"`
	PublishedAt      *time.Time    `json:"published_at" db:"published_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`

	AuthorFirstName *string `json:"author_first_name,omitempty" db:"author_first_name"`
	AuthorLastName  *string `json:"author_last_name,omitempty" db:"author_last_name"`
}

// PostInput holds the writable fields of a Post.
type PostInput struct {
	Title            string  `json:"title" validate:"required,max=200"`
	Slug             string  `json:"slug" validate:"required,max=200,slug"`
	Excerpt          *string `json:"excerpt" validate:"omitempty,max=500"`
	Content          string  `json:"content" validate:"required"`
	FeaturedImageURL *string `json:"featured_image_url" validate:"omitempty,url"`
	Status           string  `json:"status" validate:"omitempty,oneof=draft published"`
}
