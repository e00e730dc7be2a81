package storage

import (
	"strings"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/store"
)

// DefaultQuota is the storage allowance used when none is configured.
const DefaultQuota int64 = 20 << 30

// Summarize groups per-MIME usage into media classes and relates the total
// to quota.
func Summarize(usage []store.ArchiveUsage, quota int64) model.StorageStats {
	if quota <= 0 {
		quota = DefaultQuota
	}
	var stats model.StorageStats
	stats.Quota = quota

	for _, u := range usage {
		bytes, count := &stats.Breakdown.Other, &stats.FileCount.Other
		ft := strings.ToLower(u.FileType)
		switch {
		case strings.HasPrefix(ft, "image/"):
			bytes, count = &stats.Breakdown.Images, &stats.FileCount.Images
		case strings.HasPrefix(ft, "video/"):
			bytes, count = &stats.Breakdown.Videos, &stats.FileCount.Videos
		case strings.Contains(ft, "pdf"), strings.Contains(ft, "document"),
			strings.Contains(ft, "word"), strings.Contains(ft, "excel"), strings.Contains(ft, "text"):
			bytes, count = &stats.Breakdown.Documents, &stats.FileCount.Documents
		}
		*bytes += u.BytesUsed
		*count += u.FileCount
		stats.TotalUsed += u.BytesUsed
	}

	pct := float64(stats.TotalUsed) / float64(quota) * 100
	switch {
	case pct < 0:
		pct = 0
	case pct > 100:
		pct = 100
	}
	stats.UsagePercentage = pct
	return stats
}
