package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

// AuditRecord is a new audit log entry.
type AuditRecord struct {
	AdminID    string
	Action     string
	TargetType string
	TargetID   string
	Details    model.JSONDoc
	IPAddress  string
	UserAgent  string
}

// LogAdminAction appends an entry to the admin audit log.
func (s *Store) LogAdminAction(ctx context.Context, rec AuditRecord) error {
	if rec.Details == nil {
		rec.Details = model.JSONDoc{}
	}
	_, err := exec(ctx, s.db, `INSERT INTO admin_audit_log
		(id, admin_id, action, target_type, target_id, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), nullable(rec.AdminID), rec.Action, nullable(rec.TargetType),
		nullable(rec.TargetID), rec.Details, nullable(rec.IPAddress), nullable(rec.UserAgent), now())
	if err != nil {
		return wrap("insert audit entry", err)
	}
	return nil
}

// ListAuditLog returns one page of the audit log, newest first, and the
// total number of entries.
func (s *Store) ListAuditLog(ctx context.Context, page, limit int) ([]model.AuditEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	const q = `SELECT l.id, l.admin_id, l.action, l.target_type, l.target_id, l.details,
		l.ip_address, l.user_agent, l.created_at,
		a.email AS admin_email, a.first_name || ' ' || a.last_name AS admin_name
		FROM admin_audit_log l
		LEFT JOIN admins a ON l.admin_id = a.id
		ORDER BY l.created_at DESC
		LIMIT ? OFFSET ?`

	entries := []model.AuditEntry{}
	if err := selectAll(ctx, s.db, &entries, q, limit, (page-1)*limit); err != nil {
		return nil, 0, wrap("list audit log", err)
	}

	var total int64
	if err := get(ctx, s.db, &total, "SELECT COUNT(*) FROM admin_audit_log"); err != nil {
		return nil, 0, wrap("count audit log", err)
	}
	return entries, total, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
