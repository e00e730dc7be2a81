package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/francislegacy/legacy/internal/model"
)

func TestFamilyPublicReads(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminCookie(t)

	rr := env.do(t, http.MethodPost, "/api/family", toJSON(t, map[string]interface{}{
		"first_name": "Joseph",
		"last_name":  "Francis",
		"gender":     "M",
		"birth_date": "1901-02-03",
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)
	var father model.FamilyMember
	decodeJSON(t, rr, &father)

	rr = env.do(t, http.MethodPost, "/api/family", toJSON(t, map[string]interface{}{
		"first_name": "Anna",
		"last_name":  "Francis",
		"father_id":  father.ID,
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)
	var child model.FamilyMember
	decodeJSON(t, rr, &child)

	rr = env.do(t, http.MethodGet, "/api/family", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var all []model.FamilyMember
	decodeJSON(t, rr, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 members, got %d", len(all))
	}

	rr = env.do(t, http.MethodGet, "/api/family/"+child.ID, nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var detail struct {
		FirstName       string  `json:"first_name"`
		FatherFirstName *string `json:"father_first_name"`
	}
	decodeJSON(t, rr, &detail)
	if detail.FatherFirstName == nil || *detail.FatherFirstName != "Joseph" {
		t.Errorf("father_first_name = %v, want Joseph", detail.FatherFirstName)
	}

	rr = env.do(t, http.MethodGet, "/api/family/00000000-0000-0000-0000-000000000000", nil, nil)
	assertStatus(t, rr, http.StatusNotFound)
	if got := decodeError(t, rr); got.Message != "Family member not found" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestFamilyValidation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminCookie(t)

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"missing first name", map[string]interface{}{"last_name": "Francis"}, "first_name"},
		{"name too long", map[string]interface{}{"first_name": strings.Repeat("a", 51), "last_name": "Francis"}, "first_name"},
		{"bad gender", map[string]interface{}{"first_name": "A", "last_name": "B", "gender": "X"}, "gender"},
		{"bad date", map[string]interface{}{"first_name": "A", "last_name": "B", "birth_date": "03/02/1901"}, "birth_date"},
		{"death before birth", map[string]interface{}{"first_name": "A", "last_name": "B", "birth_date": "1950-01-01", "death_date": "1940-01-01"}, "death_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/family", toJSON(t, tt.body), cookie)
			assertStatus(t, rr, http.StatusBadRequest)
			detail := decodeError(t, rr)
			if detail.Message != "Validation failed" {
				t.Fatalf("message = %q", detail.Message)
			}
			fields, _ := detail.Context["details"].([]interface{})
			found := false
			for _, f := range fields {
				if m, ok := f.(map[string]interface{}); ok && m["field"] == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a %s error, got %v", tt.field, detail.Context)
			}
		})
	}
}

func TestFamilyEmptyStringsBecomeNull(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminCookie(t)

	rr := env.do(t, http.MethodPost, "/api/family", toJSON(t, map[string]interface{}{
		"first_name": "  Mary ",
		"last_name":  "Francis",
		"birth_date": "",
		"gender":     "",
		"father_id":  "",
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)

	var m model.FamilyMember
	decodeJSON(t, rr, &m)
	if m.FirstName != "Mary" {
		t.Errorf("first_name = %q", m.FirstName)
	}
	if m.BirthDate != nil || m.Gender != nil || m.FatherID != nil {
		t.Errorf("expected blank fields stored as null, got %+v", m)
	}
}

func TestFamilyUpdateRejectsSelfReference(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminCookie(t)
	m := env.seedMember(t, "Paul", "paul.francis")

	rr := env.do(t, http.MethodPut, "/api/family/"+m.ID, toJSON(t, map[string]interface{}{
		"first_name": "Paul",
		"last_name":  "Francis",
		"spouse_id":  m.ID,
	}), cookie)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, http.MethodPut, "/api/family/"+m.ID, toJSON(t, map[string]interface{}{
		"first_name": "Paulo",
		"last_name":  "Francis",
	}), cookie)
	assertStatus(t, rr, http.StatusOK)
	var updated model.FamilyMember
	decodeJSON(t, rr, &updated)
	if updated.FirstName != "Paulo" {
		t.Errorf("first_name = %q", updated.FirstName)
	}
}

func TestFamilyMutationsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seedMember(t, "Ruth", "ruth.francis")
	memberCookie := env.login(t, "ruth.francis")

	body := map[string]interface{}{"first_name": "A", "last_name": "B"}

	rr := env.do(t, http.MethodPost, "/api/family", toJSON(t, body), nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	rr = env.do(t, http.MethodPost, "/api/family", toJSON(t, body), memberCookie)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestFamilyDeleteAndAudit(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminCookie(t)

	rr := env.do(t, http.MethodPost, "/api/family", toJSON(t, map[string]interface{}{
		"first_name": "Temp",
		"last_name":  "Francis",
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)
	var m model.FamilyMember
	decodeJSON(t, rr, &m)

	rr = env.do(t, http.MethodDelete, "/api/family/"+m.ID, nil, cookie)
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, http.MethodDelete, "/api/family/"+m.ID, nil, cookie)
	assertStatus(t, rr, http.StatusNotFound)

	entries, total, err := env.store.ListAuditLog(t.Context(), 1, 50)
	if err != nil {
		t.Fatalf("ListAuditLog: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 audit entries, got %d", total)
	}
	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
	}
	if !actions[model.AuditCreateFamilyEntry] || !actions[model.AuditDeleteFamilyEntry] {
		t.Errorf("unexpected audit actions %v", actions)
	}
}

func TestFamilyProvisionLogin(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.adminCookie(t)

	rr := env.do(t, http.MethodPost, "/api/family", toJSON(t, map[string]interface{}{
		"first_name": "Lena",
		"last_name":  "Francis",
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)
	var m model.FamilyMember
	decodeJSON(t, rr, &m)

	rr = env.do(t, http.MethodPost, "/api/family/"+m.ID+"/credentials", toJSON(t, map[string]string{
		"username": "lena.francis",
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)

	var resp struct {
		Username           string `json:"username"`
		InitialPassword    string `json:"initialPassword"`
		MustChangePassword bool   `json:"mustChangePassword"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Username != "lena.francis" || resp.InitialPassword == "" || !resp.MustChangePassword {
		t.Fatalf("unexpected response %+v", resp)
	}

	// The new login works and must change its password.
	rr = env.do(t, http.MethodPost, "/api/auth/login", toJSON(t, map[string]string{
		"username": resp.Username,
		"password": resp.InitialPassword,
	}), nil)
	assertStatus(t, rr, http.StatusOK)
	var login struct {
		User struct {
			MustChangePassword bool `json:"mustChangePassword"`
		} `json:"user"`
	}
	decodeJSON(t, rr, &login)
	if !login.User.MustChangePassword {
		t.Error("expected mustChangePassword after provisioning")
	}

	// The username is unique across members.
	other := env.seedMember(t, "Other", "other.francis")
	rr = env.do(t, http.MethodPost, "/api/family/"+other.ID+"/credentials", toJSON(t, map[string]string{
		"username": "lena.francis",
	}), cookie)
	assertStatus(t, rr, http.StatusConflict)
}
