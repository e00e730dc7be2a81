package store

import (
	"context"
	"time"

	"github.com/francislegacy/legacy/internal/model"
)

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// CreateSession inserts an active session row.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now()
	}
	sess.IsActive = true

	const q = `INSERT INTO sessions
		(token, principal_kind, principal_id, expires_at, is_active, ip_address, user_agent, created_at)
		VALUES
		(:token, :principal_kind, :principal_id, :expires_at, :is_active, :ip_address, :user_agent, :created_at)`

	if _, err := namedExec(ctx, s.db, q, sess); err != nil {
		return wrap("insert session", err)
	}
	return nil
}

// GetSession returns the session row for token regardless of its state.
func (s *Store) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	const q = `SELECT token, principal_kind, principal_id, expires_at, is_active, ip_address,
		user_agent, created_at FROM sessions WHERE token = ?`
	if err := get(ctx, s.db, &sess, q, token); err != nil {
		return nil, wrap("get session", err)
	}
	return &sess, nil
}

// DeactivateSession marks one session inactive. A kind of "" matches any
// principal kind. Unknown tokens are not an error.
func (s *Store) DeactivateSession(ctx context.Context, token string, kind model.PrincipalKind) error {
	q := "UPDATE sessions SET is_active = ? WHERE token = ?"
	args := []interface{}{false, token}
	if kind != "" {
		q += " AND principal_kind = ?"
		args = append(args, kind)
	}
	if _, err := exec(ctx, s.db, q, args...); err != nil {
		return wrap("deactivate session", err)
	}
	return nil
}

// DeactivatePrincipalSessions marks every active session of a principal
// inactive and returns how many were affected.
func (s *Store) DeactivatePrincipalSessions(ctx context.Context, kind model.PrincipalKind, id string) (int, error) {
	return deactivatePrincipalSessions(ctx, s.db, kind, id)
}

func deactivatePrincipalSessions(ctx context.Context, e execer, kind model.PrincipalKind, id string) (int, error) {
	res, err := exec(ctx, e,
		"UPDATE sessions SET is_active = ? WHERE principal_kind = ? AND principal_id = ? AND is_active = ?",
		false, kind, id, true)
	if err != nil {
		return 0, wrap("deactivate principal sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("deactivate principal sessions rows affected", err)
	}
	return int(n), nil
}

// CountActiveSessions returns the number of active, unexpired sessions.
func (s *Store) CountActiveSessions(ctx context.Context) (int, error) {
	var n int
	if err := get(ctx, s.db, &n, "SELECT COUNT(*) FROM sessions WHERE is_active = ? AND expires_at > ?", true, now()); err != nil {
		return 0, wrap("count sessions", err)
	}
	return n, nil
}

// PurgeSessions deletes sessions that are inactive or expired and were
// created before cutoff. It returns the number of rows removed.
func (s *Store) PurgeSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := exec(ctx, s.db,
		"DELETE FROM sessions WHERE (is_active = ? OR expires_at < ?) AND created_at < ?",
		false, now(), cutoff.UTC())
	if err != nil {
		return 0, wrap("purge sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("purge sessions rows affected", err)
	}
	return n, nil
}
