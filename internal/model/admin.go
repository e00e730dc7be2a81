package model

import "time"

// Admin is an account stored in the admins table. Rows with Role "admin" are
// site administrators; rows with Role "member" are plain accounts created by
// an administrator that sign in with their email address.
type Admin struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	Username        *string    `json:"username,omitempty" db:"username"`
	PasswordHash    string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	Phone           *string    `json:"phone,omitempty" db:"phone"`
	BirthDate       *string    `json:"birth_date,omitempty" db:"birth_date"`
	Role            string     `json:"role" db:"role"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	PasswordChanged bool       `json:"password_changed" db:"password_changed"`
	EmailVerified   bool       `json:"email_verified" db:"email_verified"`
	ProfileImageURL *string    `json:"profile_image_url,omitempty" db:"profile_image_url"`
	CreatedBy       *string    `json:"created_by,omitempty" db:"created_by"`
	LastLogin       *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Admin table roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// FullName returns "First Last", trimmed when either part is empty.
func (a *Admin) FullName() string {
	return joinName(a.FirstName, a.LastName)
}

// AdminListItem is an Admin row enriched with the name of the account that
// created it.
type AdminListItem struct {
	Admin
	CreatedByName *string `json:"created_by_name,omitempty" db:"created_by_name"`
}
