package model

import "time"

// PrincipalKind distinguishes the two disjoint sets of accounts that can
// authenticate.
type PrincipalKind string

const (
	KindAdmin  PrincipalKind = "admin"
	KindMember PrincipalKind = "member"
)

// Valid reports whether k is one of the known kinds.
func (k PrincipalKind) Valid() bool {
	return k == KindAdmin || k == KindMember
}

// TokenPrefix is the session token prefix reserved for the kind.
func (k PrincipalKind) TokenPrefix() string {
	return string(k) + "_"
}

// UserType is the client-facing name of the kind.
// LimiterKey is the failed-login counter key of the account kind and id.
func LimiterKey(kind PrincipalKind, id string) string {
	return kind.TokenPrefix() + id
}

// UnknownLimiterKey is the counter key of a handle that matches no account.
func UnknownLimiterKey(handle string) string {
	return "unknown_" + handle
}

func (k PrincipalKind) UserType() string {
	if k == KindMember {
		return "family_member"
	}
	return "admin"
}

// Principal is an authenticated identity. Exactly one of Admin or Member is
// set, matching Kind.
type Principal struct {
	Kind            PrincipalKind
	ID              string
	DisplayName     string
	Handle          string
	Role            string // effective role: "admin" or "member"
	IsActive        bool
	PasswordChanged bool

	Admin  *Admin
	Member *FamilyMember
}

// PrincipalFromAdmin builds a principal for an admins row.
func PrincipalFromAdmin(a *Admin) *Principal {
	role := RoleMember
	if a.Role == RoleAdmin {
		role = RoleAdmin
	}
	return &Principal{
		Kind:            KindAdmin,
		ID:              a.ID,
		DisplayName:     a.FullName(),
		Handle:          a.Email,
		Role:            role,
		IsActive:        a.IsActive,
		PasswordChanged: a.PasswordChanged,
		Admin:           a,
	}
}

// PrincipalFromMember builds a principal for a family_members row.
func PrincipalFromMember(m *FamilyMember) *Principal {
	handle := ""
	if m.Username != nil {
		handle = *m.Username
	}
	return &Principal{
		Kind:            KindMember,
		ID:              m.ID,
		DisplayName:     m.FullName(),
		Handle:          handle,
		Role:            RoleMember,
		IsActive:        m.IsActive,
		PasswordChanged: m.PasswordChanged,
		Member:          m,
	}
}

// IsAdmin reports whether the principal carries the elevated admin role.
// LimiterKey is the failed-login counter key of the principal.
func (p *Principal) LimiterKey() string {
	return LimiterKey(p.Kind, p.ID)
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Kind == KindAdmin && p.Role == RoleAdmin
}

// PasswordHash returns the stored hash, or "" when the account has none.
func (p *Principal) PasswordHash() string {
	switch {
	case p.Admin != nil:
		return p.Admin.PasswordHash
	case p.Member != nil && p.Member.PasswordHash != nil:
		return *p.Member.PasswordHash
	}
	return ""
}

// View returns the JSON shape sent to clients: the account row (without the
// password hash) plus userType, effective role and mustChangePassword.
func (p *Principal) View() interface{} {
	if p.Member != nil {
		return MemberView{
			FamilyMember:       p.Member,
			UserType:           p.Kind.UserType(),
			Role:               p.Role,
			MustChangePassword: !p.PasswordChanged,
		}
	}
	return AdminView{
		Admin:              p.Admin,
		UserType:           p.Kind.UserType(),
		Role:               p.Role,
		MustChangePassword: !p.PasswordChanged,
	}
}

// AdminView is the client representation of an Admin principal.
type AdminView struct {
	*Admin
	UserType           string `json:"userType"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

// MemberView is the client representation of a FamilyMember principal.
type MemberView struct {
	*FamilyMember
	UserType           string `json:"userType"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

// Session is a server-side login session identified by an opaque token.
type Session struct {
	Token         string        `db:"token"`
	PrincipalKind PrincipalKind `db:"principal_kind"`
	PrincipalID   string        `db:"principal_id"`
	ExpiresAt     time.Time     `db:"expires_at"`
	IsActive      bool          `db:"is_active"`
	IPAddress     string        `db:"ip_address"`
	UserAgent     string        `db:"user_agent"`
	CreatedAt     time.Time     `db:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// ClientMeta describes the client that opened a session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}
