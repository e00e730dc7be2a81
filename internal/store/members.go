package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/francislegacy/legacy/internal/model"
)

// ---------------------------------------------------------------------------
// Family tree
// ---------------------------------------------------------------------------

const memberColumns = `id, first_name, last_name, maiden_name, gender, birth_date, death_date,
	birth_place, occupation, biography, profile_photo_url, father_id, mother_id, spouse_id,
	username, password_hash, is_active, password_changed, last_login, created_at, updated_at`

// FamilyMemberInput holds the genealogical fields of a family member.
// Credentials are managed separately.
type FamilyMemberInput struct {
	FirstName       string  `json:"first_name" db:"first_name" validate:"required,max=50"`
	LastName        string  `json:"last_name" db:"last_name" validate:"required,max=50"`
	MaidenName      *string `json:"maiden_name" db:"maiden_name" validate:"omitempty,max=50"`
	Gender          *string `json:"gender" db:"gender" validate:"omitempty,oneof=M F"`
	BirthDate       *string `json:"birth_date" db:"birth_date" validate:"omitempty,isodate"`
	DeathDate       *string `json:"death_date" db:"death_date" validate:"omitempty,isodate"`
	BirthPlace      *string `json:"birth_place" db:"birth_place" validate:"omitempty,max=100"`
	Occupation      *string `json:"occupation" db:"occupation" validate:"omitempty,max=100"`
	Biography       *string `json:"biography" db:"biography"`
	ProfilePhotoURL *string `json:"profile_photo_url" db:"profile_photo_url" validate:"omitempty,url"`
	FatherID        *string `json:"father_id" db:"father_id" validate:"omitempty,uuid"`
	MotherID        *string `json:"mother_id" db:"mother_id" validate:"omitempty,uuid"`
	SpouseID        *string `json:"spouse_id" db:"spouse_id" validate:"omitempty,uuid"`
}

// ListFamilyMembers returns the whole tree ordered by name.
func (s *Store) ListFamilyMembers(ctx context.Context) ([]model.FamilyMember, error) {
	members := []model.FamilyMember{}
	q := "SELECT " + memberColumns + " FROM family_members ORDER BY last_name, first_name"
	if err := selectAll(ctx, s.db, &members, q); err != nil {
		return nil, wrap("list family members", err)
	}
	return members, nil
}

// GetFamilyMember returns a member by id.
func (s *Store) GetFamilyMember(ctx context.Context, id string) (*model.FamilyMember, error) {
	var m model.FamilyMember
	if err := get(ctx, s.db, &m, "SELECT "+memberColumns+" FROM family_members WHERE id = ?", id); err != nil {
		return nil, wrap("get family member", err)
	}
	return &m, nil
}

// GetFamilyMemberDetail returns a member with the names of its parents and
// spouse.
func (s *Store) GetFamilyMemberDetail(ctx context.Context, id string) (*model.FamilyMemberDetail, error) {
	const q = `SELECT fm.id, fm.first_name, fm.last_name, fm.maiden_name, fm.gender, fm.birth_date,
		fm.death_date, fm.birth_place, fm.occupation, fm.biography, fm.profile_photo_url,
		fm.father_id, fm.mother_id, fm.spouse_id, fm.username, fm.password_hash, fm.is_active,
		fm.password_changed, fm.last_login, fm.created_at, fm.updated_at,
		f.first_name AS father_first_name, f.last_name AS father_last_name,
		m.first_name AS mother_first_name, m.last_name AS mother_last_name,
		sp.first_name AS spouse_first_name, sp.last_name AS spouse_last_name
		FROM family_members fm
		LEFT JOIN family_members f ON fm.father_id = f.id
		LEFT JOIN family_members m ON fm.mother_id = m.id
		LEFT JOIN family_members sp ON fm.spouse_id = sp.id
		WHERE fm.id = ?`

	var d model.FamilyMemberDetail
	if err := get(ctx, s.db, &d, q, id); err != nil {
		return nil, wrap("get family member detail", err)
	}
	return &d, nil
}

// GetFamilyMemberByUsername returns the member holding the given login.
// Usernames compare case-insensitively.
func (s *Store) GetFamilyMemberByUsername(ctx context.Context, username string) (*model.FamilyMember, error) {
	var m model.FamilyMember
	if err := get(ctx, s.db, &m, "SELECT "+memberColumns+" FROM family_members WHERE LOWER(username) = LOWER(?)", username); err != nil {
		return nil, wrap("get family member by username", err)
	}
	return &m, nil
}

// CreateFamilyMember inserts a member into the tree.
func (s *Store) CreateFamilyMember(ctx context.Context, in FamilyMemberInput) (*model.FamilyMember, error) {
	id := uuid.NewString()
	t := now()
	_, err := exec(ctx, s.db, `INSERT INTO family_members
		(id, first_name, last_name, maiden_name, gender, birth_date, death_date, birth_place,
		 occupation, biography, profile_photo_url, father_id, mother_id, spouse_id,
		 is_active, password_changed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.FirstName, in.LastName, in.MaidenName, in.Gender, in.BirthDate, in.DeathDate,
		in.BirthPlace, in.Occupation, in.Biography, in.ProfilePhotoURL, in.FatherID, in.MotherID,
		in.SpouseID, true, false, t, t)
	if err != nil {
		return nil, wrap("insert family member", err)
	}
	return s.GetFamilyMember(ctx, id)
}

// UpdateFamilyMember rewrites the genealogical fields of a member.
func (s *Store) UpdateFamilyMember(ctx context.Context, id string, in FamilyMemberInput) (*model.FamilyMember, error) {
	res, err := exec(ctx, s.db, `UPDATE family_members
		SET first_name = ?, last_name = ?, maiden_name = ?, gender = ?, birth_date = ?,
		    death_date = ?, birth_place = ?, occupation = ?, biography = ?,
		    profile_photo_url = ?, father_id = ?, mother_id = ?, spouse_id = ?, updated_at = ?
		WHERE id = ?`,
		in.FirstName, in.LastName, in.MaidenName, in.Gender, in.BirthDate, in.DeathDate,
		in.BirthPlace, in.Occupation, in.Biography, in.ProfilePhotoURL, in.FatherID, in.MotherID,
		in.SpouseID, now(), id)
	if err != nil {
		return nil, wrap("update family member", err)
	}
	if err := requireRows("update family member", res); err != nil {
		return nil, err
	}
	return s.GetFamilyMember(ctx, id)
}

// DeleteFamilyMember removes a member from the tree together with its
// sessions. Relatives pointing at it lose the link.
func (s *Store) DeleteFamilyMember(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx execer) error {
		if _, err := exec(ctx, tx, "DELETE FROM sessions WHERE principal_kind = ? AND principal_id = ?", model.KindMember, id); err != nil {
			return wrap("delete member sessions", err)
		}
		res, err := exec(ctx, tx, "DELETE FROM family_members WHERE id = ?", id)
		if err != nil {
			return wrap("delete family member", err)
		}
		return requireRows("delete family member", res)
	})
}

// SetMemberCredentials gives a member a login. passwordChanged=false forces a
// password change on first sign-in.
func (s *Store) SetMemberCredentials(ctx context.Context, id, username, passwordHash string, passwordChanged bool) error {
	res, err := exec(ctx, s.db, `UPDATE family_members
		SET username = ?, password_hash = ?, password_changed = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		username, passwordHash, passwordChanged, true, now(), id)
	if err != nil {
		return wrap("set member credentials", err)
	}
	return requireRows("set member credentials", res)
}

// SetMemberActive enables or disables a member's login.
func (s *Store) SetMemberActive(ctx context.Context, id string, active bool) error {
	res, err := exec(ctx, s.db, "UPDATE family_members SET is_active = ?, updated_at = ? WHERE id = ?", active, now(), id)
	if err != nil {
		return wrap("set member active", err)
	}
	return requireRows("set member active", res)
}
