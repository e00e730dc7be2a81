package model

import (
	"strings"
	"time"
)

// FamilyMember is a person in the family tree. A member may also hold login
// credentials (Username and PasswordHash), in which case it can authenticate
// as a FamilyMember principal.
type FamilyMember struct {
	ID              string     `json:"id" db:"id"`
	FirstName       string     `json:"first_name" db:"first_name"`
	LastName        string     `json:"last_name" db:"last_name"`
	MaidenName      *string    `json:"maiden_name" db:"maiden_name"`
	Gender          *string    `json:"gender" db:"gender"`
	BirthDate       *string    `json:"birth_date" db:"birth_date"`
	DeathDate       *string    `json:"death_date" db:"death_date"`
	BirthPlace      *string    `json:"birth_place" db:"birth_place"`
	Occupation      *string    `json:"occupation" db:"occupation"`
	Biography       *string    `json:"biography" db:"biography"`
	ProfilePhotoURL *string    `json:"profile_photo_url" db:"profile_photo_url"`
	FatherID        *string    `json:"father_id" db:"father_id"`
	MotherID        *string    `json:"mother_id" db:"mother_id"`
	SpouseID        *string    `json:"spouse_id" db:"spouse_id"`
	Username        *string    `json:"username,omitempty" db:"username"`
	PasswordHash    *string    `json:"-" db:"password_hash"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	PasswordChanged bool       `json:"password_changed" db:"password_changed"`
	LastLogin       *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName returns "First Last".
func (m *FamilyMember) FullName() string {
	return joinName(m.FirstName, m.LastName)
}

// HasCredentials reports whether the member can sign in.
func (m *FamilyMember) HasCredentials() bool {
	return m.Username != nil && m.PasswordHash != nil && *m.PasswordHash != ""
}

// FamilyMemberDetail is a FamilyMember with the names of its direct relatives
// resolved for display.
type FamilyMemberDetail struct {
	FamilyMember
	FatherFirstName *string `json:"father_first_name" db:"father_first_name"`
	FatherLastName  *string `json:"father_last_name" db:"father_last_name"`
	MotherFirstName *string `json:"mother_first_name" db:"mother_first_name"`
	MotherLastName  *string `json:"mother_last_name" db:"mother_last_name"`
	SpouseFirstName *string `json:"spouse_first_name" db:"spouse_first_name"`
	SpouseLastName  *string `json:"spouse_last_name" db:"spouse_last_name"`
}

// DefaultUsername derives the login name used when credentials are first
// provisioned for a member: "first.last" in lower case with inner spaces
// removed.
func DefaultUsername(firstName, lastName string) string {
	clean := func(s string) string {
		return strings.ToLower(strings.Join(strings.Fields(s), ""))
	}
	return clean(firstName) + "." + clean(lastName)
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
