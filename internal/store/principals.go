package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/francislegacy/legacy/internal/model"
)

// FindPrincipalByHandle resolves a login handle to a principal. A handle
// containing "@" is an email and only matches admin-table accounts.
// Otherwise family members are searched by username first, then admin-table
// accounts by username. ErrNotFound is returned when nothing matches.
func (s *Store) FindPrincipalByHandle(ctx context.Context, handle string) (*model.Principal, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, ErrNotFound
	}

	if strings.Contains(handle, "@") {
		a, err := s.GetAdminByEmail(ctx, handle)
		if err != nil {
			return nil, err
		}
		return model.PrincipalFromAdmin(a), nil
	}

	m, err := s.GetFamilyMemberByUsername(ctx, handle)
	if err == nil {
		return model.PrincipalFromMember(m), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	a, err := s.GetAdminByUsername(ctx, handle)
	if err != nil {
		return nil, err
	}
	return model.PrincipalFromAdmin(a), nil
}

// GetPrincipal loads the principal of the given kind and id.
func (s *Store) GetPrincipal(ctx context.Context, kind model.PrincipalKind, id string) (*model.Principal, error) {
	switch kind {
	case model.KindAdmin:
		a, err := s.GetAdmin(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.PrincipalFromAdmin(a), nil
	case model.KindMember:
		m, err := s.GetFamilyMember(ctx, id)
		if err != nil {
			return nil, err
		}
		return model.PrincipalFromMember(m), nil
	}
	return nil, fmt.Errorf("unknown principal kind %q", kind)
}

// ResolveLimiterKey maps a login handle to a stable rate-limit key so that
// every handle of one account shares a counter. It follows the precedence of
// FindPrincipalByHandle: "member_<id>" or "admin_<id>" for the account a
// login with handle would reach, "unknown_<handle>" otherwise.
func (s *Store) ResolveLimiterKey(ctx context.Context, handle string) (string, error) {
	p, err := s.FindPrincipalByHandle(ctx, handle)
	if errors.Is(err, ErrNotFound) {
		return model.UnknownLimiterKey(handle), nil
	}
	if err != nil {
		return "", err
	}
	return p.LimiterKey(), nil
}

func principalTable(kind model.PrincipalKind) (string, error) {
	switch kind {
	case model.KindAdmin:
		return "admins", nil
	case model.KindMember:
		return "family_members", nil
	}
	return "", fmt.Errorf("unknown principal kind %q", kind)
}

// UpdateLastLogin stamps the principal's last_login.
func (s *Store) UpdateLastLogin(ctx context.Context, kind model.PrincipalKind, id string) error {
	table, err := principalTable(kind)
	if err != nil {
		return err
	}
	t := now()
	res, err := exec(ctx, s.db, "UPDATE "+table+" SET last_login = ?, updated_at = ? WHERE id = ?", t, t, id)
	if err != nil {
		return wrap("update last login", err)
	}
	return requireRows("update last login", res)
}

// ChangePassword stores a new password hash chosen by the principal, marks
// the password as changed and deactivates every session of the principal,
// all in one transaction. It returns the number of sessions deactivated.
func (s *Store) ChangePassword(ctx context.Context, kind model.PrincipalKind, id, passwordHash string) (int, error) {
	return s.setPassword(ctx, kind, id, passwordHash, true)
}

// ResetPassword stores an administrator-issued temporary password hash,
// forces a change on next sign-in and deactivates every session of the
// principal. It returns the number of sessions deactivated.
func (s *Store) ResetPassword(ctx context.Context, kind model.PrincipalKind, id, passwordHash string) (int, error) {
	return s.setPassword(ctx, kind, id, passwordHash, false)
}

func (s *Store) setPassword(ctx context.Context, kind model.PrincipalKind, id, passwordHash string, changed bool) (int, error) {
	table, err := principalTable(kind)
	if err != nil {
		return 0, err
	}

	var invalidated int
	err = s.withTx(ctx, func(tx execer) error {
		res, err := exec(ctx, tx,
			"UPDATE "+table+" SET password_hash = ?, password_changed = ?, updated_at = ? WHERE id = ?",
			passwordHash, changed, now(), id)
		if err != nil {
			return wrap("update password", err)
		}
		if err := requireRows("update password", res); err != nil {
			return err
		}
		invalidated, err = deactivatePrincipalSessions(ctx, tx, kind, id)
		return err
	})
	if err != nil {
		return 0, err
	}
	return invalidated, nil
}
