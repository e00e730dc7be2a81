package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

const archiveSelect = `SELECT ai.id, ai.title, ai.description, ai.file_url, ai.storage_key,
	ai.file_type, ai.file_size, ai.category, ai.tags, ai.date_taken, ai.location,
	ai.person_related, ai.uploaded_by, ai.uploader_kind, ai.status, ai.approved_by,
	ai.approved_at, ai.created_at, ai.updated_at,
	COALESCE(a.first_name || ' ' || a.last_name, fm.first_name || ' ' || fm.last_name) AS uploaded_by_name
	FROM archive_items ai
	LEFT JOIN admins a ON ai.uploader_kind = 'admin' AND ai.uploaded_by = a.id
	LEFT JOIN family_members fm ON ai.uploader_kind = 'member' AND ai.uploaded_by = fm.id`

// ListArchives returns published archive items matching f, newest first.
func (s *Store) ListArchives(ctx context.Context, f model.ArchiveFilter) ([]model.ArchiveItem, error) {
	where := []string{"ai.status = ?"}
	args := []interface{}{model.ArchivePublished}

	if f.Category != "" {
		where = append(where, "ai.category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		where = append(where, "ai.file_type LIKE ?")
		args = append(args, f.Type+"%")
	}
	if f.Search != "" {
		where = append(where, "(LOWER(ai.title) LIKE ? OR LOWER(ai.description) LIKE ? OR LOWER(ai.tags) LIKE ?)")
		pattern := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if f.Decade != "" {
		where = append(where, "LOWER(ai.tags) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Decade)+"%")
	}

	q := archiveSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY ai.created_at DESC"
	items := []model.ArchiveItem{}
	if err := selectAll(ctx, s.db, &items, q, args...); err != nil {
		return nil, wrap("list archives", err)
	}
	return items, nil
}

// GetArchive returns a published archive item.
func (s *Store) GetArchive(ctx context.Context, id string) (*model.ArchiveItem, error) {
	var item model.ArchiveItem
	if err := get(ctx, s.db, &item, archiveSelect+" WHERE ai.id = ? AND ai.status = ?", id, model.ArchivePublished); err != nil {
		return nil, wrap("get archive", err)
	}
	return &item, nil
}

// GetArchiveAnyStatus returns an archive item regardless of status.
func (s *Store) GetArchiveAnyStatus(ctx context.Context, id string) (*model.ArchiveItem, error) {
	var item model.ArchiveItem
	if err := get(ctx, s.db, &item, archiveSelect+" WHERE ai.id = ?", id); err != nil {
		return nil, wrap("get archive", err)
	}
	return &item, nil
}

// ListArchivesByUploader returns every item uploaded by a principal.
func (s *Store) ListArchivesByUploader(ctx context.Context, kind model.PrincipalKind, id string) ([]model.ArchiveItem, error) {
	items := []model.ArchiveItem{}
	q := archiveSelect + " WHERE ai.uploader_kind = ? AND ai.uploaded_by = ? ORDER BY ai.created_at DESC"
	if err := selectAll(ctx, s.db, &items, q, kind, id); err != nil {
		return nil, wrap("list user archives", err)
	}
	return items, nil
}

// CreateArchive inserts an archive item uploaded by the given principal.
func (s *Store) CreateArchive(ctx context.Context, in model.ArchiveInput, kind model.PrincipalKind, uploaderID string) (*model.ArchiveItem, error) {
	id, err := insertArchive(ctx, s.db, in, kind, uploaderID, nil)
	if err != nil {
		return nil, err
	}
	return s.GetArchiveAnyStatus(ctx, id)
}

func insertArchive(ctx context.Context, e execer, in model.ArchiveInput, kind model.PrincipalKind, uploaderID string, approvedBy *string) (string, error) {
	if in.Status == "" {
		in.Status = model.ArchivePublished
	}
	if in.Tags == nil {
		in.Tags = model.Tags{}
	}
	id := uuid.NewString()
	t := now()
	var approvedAt *time.Time
	if approvedBy != nil {
		approvedAt = &t
	}
	_, err := exec(ctx, e, `INSERT INTO archive_items
		(id, title, description, file_url, storage_key, file_type, file_size, category, tags,
		 date_taken, location, person_related, uploaded_by, uploader_kind, status, approved_by,
		 approved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Description, in.FileURL, in.StorageKey, in.FileType, in.FileSize,
		in.Category, in.Tags, in.DateTaken, in.Location, in.PersonRelated, uploaderID, kind,
		in.Status, approvedBy, approvedAt, t, t)
	if err != nil {
		return "", wrap("insert archive", err)
	}
	return id, nil
}

// UpdateArchive rewrites the descriptive fields of an item owned by the
// given principal. Items owned by someone else report ErrNotFound.
func (s *Store) UpdateArchive(ctx context.Context, id string, in model.ArchiveInput, kind model.PrincipalKind, ownerID string) (*model.ArchiveItem, error) {
	if in.Status == "" {
		in.Status = model.ArchivePublished
	}
	if in.Tags == nil {
		in.Tags = model.Tags{}
	}
	res, err := exec(ctx, s.db, `UPDATE archive_items
		SET title = ?, description = ?, category = ?, tags = ?, date_taken = ?, location = ?,
		    person_related = ?, status = ?, updated_at = ?
		WHERE id = ? AND uploader_kind = ? AND uploaded_by = ?`,
		in.Title, in.Description, in.Category, in.Tags, in.DateTaken, in.Location,
		in.PersonRelated, in.Status, now(), id, kind, ownerID)
	if err != nil {
		return nil, wrap("update archive", err)
	}
	if err := requireRows("update archive", res); err != nil {
		return nil, err
	}
	return s.GetArchiveAnyStatus(ctx, id)
}

// DeleteArchive removes an item owned by the given principal and returns the
// deleted row so the caller can clean up its stored object.
func (s *Store) DeleteArchive(ctx context.Context, id string, kind model.PrincipalKind, ownerID string) (*model.ArchiveItem, error) {
	var deleted *model.ArchiveItem
	err := s.withTx(ctx, func(tx execer) error {
		var item model.ArchiveItem
		err := get(ctx, tx, &item, archiveSelect+" WHERE ai.id = ? AND ai.uploader_kind = ? AND ai.uploaded_by = ?", id, kind, ownerID)
		if err != nil {
			return wrap("get archive", err)
		}
		if _, err := exec(ctx, tx, "DELETE FROM archive_items WHERE id = ?", id); err != nil {
			return wrap("delete archive", err)
		}
		deleted = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ArchiveStats counts published items by media class and reports the span
// of years they cover.
func (s *Store) ArchiveStats(ctx context.Context) (*model.ArchiveStats, error) {
	const q = `SELECT
		COALESCE(SUM(CASE WHEN file_type LIKE 'application/%' OR file_type = 'text/plain' THEN 1 ELSE 0 END), 0) AS documents,
		COALESCE(SUM(CASE WHEN file_type LIKE 'image/%' THEN 1 ELSE 0 END), 0) AS photos,
		COALESCE(SUM(CASE WHEN file_type LIKE 'video/%' THEN 1 ELSE 0 END), 0) AS videos,
		COALESCE(SUM(CASE WHEN file_type LIKE 'audio/%' THEN 1 ELSE 0 END), 0) AS audio,
		COUNT(*) AS total,
		MIN(date_taken) AS earliest_date,
		MAX(date_taken) AS latest_date
		FROM archive_items
		WHERE status = ?`

	var st model.ArchiveStats
	if err := get(ctx, s.db, &st, q, model.ArchivePublished); err != nil {
		return nil, wrap("archive stats", err)
	}
	st.YearsCovered = yearsCovered(st.EarliestDate, st.LatestDate)
	return &st, nil
}

func yearsCovered(earliest, latest *string) int {
	if earliest == nil || latest == nil || len(*earliest) < 4 || len(*latest) < 4 {
		return 0
	}
	from, err1 := time.Parse("2006", (*earliest)[:4])
	to, err2 := time.Parse("2006", (*latest)[:4])
	if err1 != nil || err2 != nil {
		return 0
	}
	return to.Year() - from.Year() + 1
}

// ArchiveUsage is the byte total and file count for one MIME type.
type ArchiveUsage struct {
	FileType  string `db:"file_type"`
	BytesUsed int64  `db:"bytes_used"`
	FileCount int64  `db:"file_count"`
}

// ArchiveUsageByType sums file sizes of published items per MIME type.
func (s *Store) ArchiveUsageByType(ctx context.Context) ([]ArchiveUsage, error) {
	const q = `SELECT COALESCE(file_type, '') AS file_type,
		CAST(COALESCE(SUM(file_size), 0) AS BIGINT) AS bytes_used,
		COUNT(*) AS file_count
		FROM archive_items
		WHERE status = ? AND file_size IS NOT NULL
		GROUP BY file_type
		ORDER BY bytes_used DESC`

	usage := []ArchiveUsage{}
	if err := selectAll(ctx, s.db, &usage, q, model.ArchivePublished); err != nil {
		return nil, wrap("archive usage", err)
	}
	return usage, nil
}
