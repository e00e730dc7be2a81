package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

// ---------------------------------------------------------------------------
// Admin accounts
// ---------------------------------------------------------------------------

const adminColumns = `id, email, username, password_hash, first_name, last_name, phone,
	birth_date, role, is_active, password_changed, email_verified, profile_image_url,
	created_by, last_login, created_at, updated_at`

// CreateAdmin inserts a new admin-table account. ID, CreatedAt and UpdatedAt
// are populated on admin.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	if admin.Role == "" {
		admin.Role = model.RoleMember
	}
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))
	t := now()
	admin.CreatedAt = t
	admin.UpdatedAt = t

	const q = `INSERT INTO admins
		(id, email, username, password_hash, first_name, last_name, phone, birth_date, role,
		 is_active, password_changed, email_verified, profile_image_url, created_by,
		 created_at, updated_at)
		VALUES
		(:id, :email, :username, :password_hash, :first_name, :last_name, :phone, :birth_date, :role,
		 :is_active, :password_changed, :email_verified, :profile_image_url, :created_by,
		 :created_at, :updated_at)`

	if _, err := namedExec(ctx, s.db, q, admin); err != nil {
		return wrap("insert admin", err)
	}
	return nil
}

// GetAdmin returns an admin-table account by id.
func (s *Store) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	var a model.Admin
	if err := get(ctx, s.db, &a, "SELECT "+adminColumns+" FROM admins WHERE id = ?", id); err != nil {
		return nil, wrap("get admin", err)
	}
	return &a, nil
}

// GetAdminByEmail returns an admin-table account by email address. The
// comparison is case-insensitive.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	q := "SELECT " + adminColumns + " FROM admins WHERE LOWER(email) = LOWER(?)"
	if err := get(ctx, s.db, &a, q, strings.TrimSpace(email)); err != nil {
		return nil, wrap("get admin by email", err)
	}
	return &a, nil
}

// GetAdminByUsername returns an admin-table account by username.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	if err := get(ctx, s.db, &a, "SELECT "+adminColumns+" FROM admins WHERE LOWER(username) = LOWER(?)", username); err != nil {
		return nil, wrap("get admin by username", err)
	}
	return &a, nil
}

// ListAdmins returns every admin-table account with the name of its creator,
// newest first.
func (s *Store) ListAdmins(ctx context.Context) ([]model.AdminListItem, error) {
	const q = `SELECT a.id, a.email, a.username, a.password_hash, a.first_name, a.last_name,
		a.phone, a.birth_date, a.role, a.is_active, a.password_changed, a.email_verified,
		a.profile_image_url, a.created_by, a.last_login, a.created_at, a.updated_at,
		c.first_name || ' ' || c.last_name AS created_by_name
		FROM admins a
		LEFT JOIN admins c ON a.created_by = c.id
		ORDER BY a.created_at DESC`

	admins := []model.AdminListItem{}
	if err := selectAll(ctx, s.db, &admins, q); err != nil {
		return nil, wrap("list admins", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one account with the admin role
// exists.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := get(ctx, s.db, &count, "SELECT COUNT(*) FROM admins WHERE role = ?", model.RoleAdmin); err != nil {
		return false, wrap("count admins", err)
	}
	return count > 0, nil
}

// AdminUpdate holds the editable profile fields of an admin-table account.
type AdminUpdate struct {
	FirstName string  `db:"first_name"`
	LastName  string  `db:"last_name"`
	Email     string  `db:"email"`
	Phone     *string `db:"phone"`
	BirthDate *string `db:"birth_date"`
	Role      string  `db:"role"`
	IsActive  bool    `db:"is_active"`
}

// UpdateAdmin rewrites the profile fields of an admin-table account.
func (s *Store) UpdateAdmin(ctx context.Context, id string, u AdminUpdate) (*model.Admin, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := exec(ctx, s.db, `UPDATE admins
		SET first_name = ?, last_name = ?, email = ?, phone = ?, birth_date = ?, role = ?,
		    is_active = ?, updated_at = ?
		WHERE id = ?`,
		u.FirstName, u.LastName, u.Email, u.Phone, u.BirthDate, u.Role, u.IsActive, now(), id)
	if err != nil {
		return nil, wrap("update admin", err)
	}
	if err := requireRows("update admin", res); err != nil {
		return nil, err
	}
	return s.GetAdmin(ctx, id)
}

// SetAdminActive enables or disables an admin-table account.
func (s *Store) SetAdminActive(ctx context.Context, id string, active bool) error {
	res, err := exec(ctx, s.db, "UPDATE admins SET is_active = ?, updated_at = ? WHERE id = ?", active, now(), id)
	if err != nil {
		return wrap("set admin active", err)
	}
	return requireRows("set admin active", res)
}
