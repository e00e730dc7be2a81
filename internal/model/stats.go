package model

// DashboardStats are the headline counts on the admin dashboard.
type DashboardStats struct {
	TotalUsers         int `json:"totalUsers" db:"total_users"`
	TotalFamilyMembers int `json:"totalFamilyMembers" db:"total_family_members"`
	TotalBlogPosts     int `json:"totalBlogPosts" db:"total_blog_posts"`
	TotalNewsArticles  int `json:"totalNewsArticles" db:"total_news_articles"`
	TotalArchives      int `json:"totalArchives" db:"total_archives"`
	PendingSubmissions int `json:"pendingSubmissions" db:"pending_submissions"`
}

// StorageBreakdown groups archive bytes or file counts by broad media class.
type StorageBreakdown struct {
	Images    int64 `json:"images"`
	Videos    int64 `json:"videos"`
	Documents int64 `json:"documents"`
	Other     int64 `json:"other"`
}

// StorageStats reports object storage usage against the configured quota.
type StorageStats struct {
	TotalUsed       int64            `json:"totalUsed"`
	Quota           int64            `json:"quota"`
	UsagePercentage float64          `json:"usagePercentage"`
	Breakdown       StorageBreakdown `json:"breakdown"`
	FileCount       StorageBreakdown `json:"fileCount"`
}

// RateLimitStats summarizes the login limiter.
type RateLimitStats struct {
	TotalTrackedUsers int `json:"totalTrackedUsers"`
	BlockedUsers      int `json:"blockedUsers"`
	ActiveAttempts    int `json:"activeAttempts"`
}
