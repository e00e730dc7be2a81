package store

import (
	"context"

	"github.com/francislegacy/legacy/internal/model"
)

// DashboardStats computes the admin dashboard counters.
func (s *Store) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM admins WHERE role = ?) AS total_users,
		(SELECT COUNT(*) FROM family_members) AS total_family_members,
		(SELECT COUNT(*) FROM blog_posts WHERE status = ?) AS total_blog_posts,
		(SELECT COUNT(*) FROM news_articles WHERE status = ?) AS total_news_articles,
		(SELECT COUNT(*) FROM archive_items WHERE status = ?) AS total_archives,
		(SELECT COUNT(*) FROM content_submissions WHERE status = ?) AS pending_submissions`

	var st model.DashboardStats
	err := get(ctx, s.db, &st, q,
		model.RoleMember, model.PostPublished, model.PostPublished, model.ArchivePublished,
		model.SubmissionPending)
	if err != nil {
		return nil, wrap("dashboard stats", err)
	}
	return &st, nil
}
