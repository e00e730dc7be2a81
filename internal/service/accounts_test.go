package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francislegacy/legacy/internal/mail"
	"github.com/francislegacy/legacy/internal/model"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newAccountEnv(t *testing.T, environment string) (*testEnv, *AccountService, *recordingSender, *model.Admin) {
	t.Helper()
	env := newTestEnv(t)
	sender := &recordingSender{}
	accounts := NewAccountService(env.store, env.hasher, sender, nil, AccountOptions{Environment: environment})
	admin := env.seedAdmin(t, "admin@example.com", model.RoleAdmin)
	return env, accounts, sender, admin
}

func auditActions(t *testing.T, env *testEnv) []string {
	t.Helper()
	entries, _, err := env.store.ListAuditLog(context.Background(), 1, 100)
	require.NoError(t, err)
	actions := make([]string, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions
}

func TestCreateUser(t *testing.T) {
	env, accounts, sender, admin := newAccountEnv(t, "development")
	ctx := context.Background()

	res, err := accounts.CreateUser(ctx, Actor{ID: admin.ID, IPAddress: "10.0.0.9"}, NewUserInput{
		Email: "Cousin@Example.com", FirstName: "Cora", LastName: "Francis",
	})
	require.NoError(t, err)
	assert.Equal(t, "cousin@example.com", res.User.Email)
	assert.Equal(t, model.RoleMember, res.User.Role)
	assert.False(t, res.User.PasswordChanged)
	assert.Len(t, res.TempPassword, 16)
	assert.True(t, res.EmailSent)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"cousin@example.com"}, sender.sent[0].To)
	assert.Equal(t, "Welcome to Francis Legacy - Your Account Details", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, res.TempPassword)

	login, err := env.auth.Login(ctx, "cousin@example.com", res.TempPassword, model.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, model.RoleMember, login.Principal.Role)
	assert.Equal(t, admin.ID, *login.Principal.Admin.CreatedBy)

	assert.Equal(t, []string{model.AuditCreateUser}, auditActions(t, env))

	_, err = accounts.CreateUser(ctx, Actor{ID: admin.ID}, NewUserInput{
		Email: "cousin@example.com", FirstName: "Other", LastName: "Person",
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateUserProductionHidesPassword(t *testing.T) {
	_, accounts, sender, admin := newAccountEnv(t, "production")
	sender.err = errors.New("smtp down")

	res, err := accounts.CreateUser(context.Background(), Actor{ID: admin.ID}, NewUserInput{
		Email: "cousin@example.com", FirstName: "Cora", LastName: "Francis",
	})
	require.NoError(t, err)
	assert.Empty(t, res.TempPassword)
	assert.False(t, res.EmailSent)
}

func TestUpdateUser(t *testing.T) {
	env, accounts, _, admin := newAccountEnv(t, "")
	ctx := context.Background()
	other := env.seedAdmin(t, "other@example.com", model.RoleMember)
	sess := env.login(t, "other@example.com")

	user, err := accounts.UpdateUser(ctx, Actor{ID: admin.ID}, other.ID, UpdateUserInput{
		Email: "other@example.com", FirstName: "Otto", LastName: "Francis", Role: model.RoleMember, IsActive: false,
	})
	require.NoError(t, err)
	assert.Equal(t, "Otto", user.FirstName)
	assert.False(t, user.IsActive)

	_, err = env.auth.ResolveSession(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = accounts.UpdateUser(ctx, Actor{ID: admin.ID}, "00000000-0000-0000-0000-000000000000", UpdateUserInput{
		Email: "x@example.com", FirstName: "X", LastName: "Y", Role: model.RoleMember,
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = accounts.UpdateUser(ctx, Actor{ID: admin.ID}, other.ID, UpdateUserInput{
		Email: "admin@example.com", FirstName: "X", LastName: "Y", Role: model.RoleMember, IsActive: true,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = accounts.UpdateUser(ctx, Actor{ID: admin.ID}, admin.ID, UpdateUserInput{
		Email: "admin@example.com", FirstName: "A", LastName: "F", Role: model.RoleMember, IsActive: true,
	})
	assert.ErrorIs(t, err, ErrSelfAction)
}

func TestDeactivateUser(t *testing.T) {
	env, accounts, _, admin := newAccountEnv(t, "")
	ctx := context.Background()
	other := env.seedAdmin(t, "other@example.com", model.RoleMember)
	res := env.login(t, "other@example.com")

	assert.ErrorIs(t, accounts.DeactivateUser(ctx, Actor{ID: admin.ID}, admin.ID), ErrSelfAction)
	assert.ErrorIs(t, accounts.DeactivateUser(ctx, Actor{ID: admin.ID}, "00000000-0000-0000-0000-000000000000"), ErrNotFound)

	require.NoError(t, accounts.DeactivateUser(ctx, Actor{ID: admin.ID}, other.ID))

	got, err := env.store.GetAdmin(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = env.auth.ResolveSession(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, auditActions(t, env), model.AuditDeleteUser)
}

func TestResetPasswordAdminRow(t *testing.T) {
	env, accounts, sender, admin := newAccountEnv(t, "development")
	ctx := context.Background()
	other := env.seedAdmin(t, "other@example.com", model.RoleMember)
	old := env.login(t, "other@example.com")

	_, err := accounts.ResetPassword(ctx, Actor{ID: admin.ID}, model.KindAdmin, admin.ID)
	assert.ErrorIs(t, err, ErrSelfAction)

	res, err := accounts.ResetPassword(ctx, Actor{ID: admin.ID}, model.KindAdmin, other.ID)
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.Equal(t, 1, res.SessionsInvalidated)
	assert.Len(t, res.NewPassword, 16)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Reset Your Francis Legacy Password", sender.sent[0].Subject)

	_, err = env.auth.ResolveSession(ctx, old.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	login, err := env.auth.Login(ctx, "other@example.com", res.NewPassword, model.ClientMeta{})
	require.NoError(t, err)
	assert.False(t, login.Principal.PasswordChanged)
	assert.Contains(t, auditActions(t, env), model.AuditResetPassword)
}

func TestResetPasswordMember(t *testing.T) {
	env, accounts, sender, admin := newAccountEnv(t, "development")
	ctx := context.Background()
	noLogin := env.seedMember(t, "No", "Login", "")
	m := env.seedMember(t, "Sam", "Francis", "sam.francis")

	_, err := accounts.ResetPassword(ctx, Actor{ID: admin.ID}, model.KindMember, noLogin.ID)
	assert.ErrorIs(t, err, ErrNoLogin)

	_, err = accounts.ResetPassword(ctx, Actor{ID: admin.ID}, model.KindMember, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	res, err := accounts.ResetPassword(ctx, Actor{ID: admin.ID}, model.KindMember, m.ID)
	require.NoError(t, err)
	assert.False(t, res.EmailSent, "members have no email address")
	assert.Empty(t, sender.sent)

	_, err = env.auth.Login(ctx, "sam.francis", res.NewPassword, model.ClientMeta{})
	require.NoError(t, err)
}

func TestProvisionMemberLogin(t *testing.T) {
	env, accounts, _, admin := newAccountEnv(t, "")
	ctx := context.Background()
	m := env.seedMember(t, "Mary Ann", "Francis", "")

	res, err := accounts.ProvisionMemberLogin(ctx, Actor{ID: admin.ID}, m.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "maryann.francis", res.Username)
	assert.Equal(t, res.Username, res.InitialPassword)

	login, err := env.auth.Login(ctx, "maryann.francis", "maryann.francis", model.ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, model.KindMember, login.Principal.Kind)
	assert.True(t, login.Principal.View().(model.MemberView).MustChangePassword)

	other := env.seedMember(t, "Other", "Person", "")
	_, err = accounts.ProvisionMemberLogin(ctx, Actor{ID: admin.ID}, other.ID, "MaryAnn.Francis")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = accounts.ProvisionMemberLogin(ctx, Actor{ID: admin.ID}, "00000000-0000-0000-0000-000000000000", "")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, auditActions(t, env), model.AuditProvisionLogin)
}

func TestAuditorRecordsActor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedAdmin(t, "admin@example.com", model.RoleAdmin)
	p := model.PrincipalFromAdmin(admin)

	NewAuditor(env.store, nil).Record(ctx, ActorFrom(p, model.ClientMeta{IPAddress: "1.2.3.4", UserAgent: "ua"}),
		model.AuditClearRateLimit, "rate_limit", "someone", model.JSONDoc{"handle": "someone"})

	entries, total, err := env.store.ListAuditLog(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, admin.ID, *entries[0].AdminID)
	assert.Equal(t, "1.2.3.4", *entries[0].IPAddress)
	assert.WithinDuration(t, time.Now(), entries[0].CreatedAt, time.Minute)
}

func TestActorFromMemberIsAnonymous(t *testing.T) {
	user := "ada.francis"
	p := model.PrincipalFromMember(&model.FamilyMember{ID: "m1", Username: &user})
	a := ActorFrom(p, model.ClientMeta{IPAddress: "1.2.3.4"})
	assert.Empty(t, a.ID)
	assert.Equal(t, "1.2.3.4", a.IPAddress)
}
