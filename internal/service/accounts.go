package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/francislegacy/legacy/internal/mail"
	"github.com/francislegacy/legacy/internal/metrics"
	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/password"
	"github.com/francislegacy/legacy/internal/store"
)

var (
	ErrDuplicate  = errors.New("account already exists")
	ErrSelfAction = errors.New("cannot perform this action on your own account")
	ErrNotFound   = errors.New("account not found")
	ErrNoLogin    = errors.New("member has no login")
)

// AccountOptions configures an AccountService.
type AccountOptions struct {
	// Environment "development" echoes temporary passwords in results.
	Environment string
	LoginURL    string
	Logger      *slog.Logger
}

// AccountService provisions accounts and resets passwords on behalf of
// administrators.
type AccountService struct {
	store    *store.Store
	hasher   *password.Hasher
	mailer   mail.Sender
	auditor  *Auditor
	devMode  bool
	loginURL string
	logger   *slog.Logger
}

func NewAccountService(st *store.Store, hasher *password.Hasher, mailer mail.Sender, auditor *Auditor, opts AccountOptions) *AccountService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if mailer == nil {
		mailer = mail.LogSender{Logger: opts.Logger}
	}
	if auditor == nil {
		auditor = NewAuditor(st, opts.Logger)
	}
	return &AccountService{
		store:    st,
		hasher:   hasher,
		mailer:   mailer,
		auditor:  auditor,
		devMode:  opts.Environment == "development",
		loginURL: opts.LoginURL,
		logger:   opts.Logger,
	}
}

// NewUserInput is an administrator's request for a new account.
type NewUserInput struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"firstName" validate:"required,max=50"`
	LastName  string  `json:"lastName" validate:"required,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	BirthDate *string `json:"birthDate" validate:"omitempty,isodate"`
}

// UpdateUserInput is an administrator's edit of an account.
type UpdateUserInput struct {
	Email     string  `json:"email" validate:"required,email"`
	FirstName string  `json:"firstName" validate:"required,max=50"`
	LastName  string  `json:"lastName" validate:"required,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	BirthDate *string `json:"birthDate" validate:"omitempty,isodate"`
	Role      string  `json:"role" validate:"required,oneof=admin member"`
	IsActive  bool    `json:"isActive"`
}

// CreateUserResult is a created account. TempPassword is only set in
// development.
type CreateUserResult struct {
	User         *model.Admin
	TempPassword string
	EmailSent    bool
}

// CreateUser creates an admin-table account with role member and a random
// temporary password, and mails the password to the new user.
func (s *AccountService) CreateUser(ctx context.Context, actor Actor, in NewUserInput) (*CreateUserResult, error) {
	temp, err := password.Temporary()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(temp)
	if err != nil {
		return nil, err
	}

	user := &model.Admin{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		BirthDate:    in.BirthDate,
		Role:         model.RoleMember,
		IsActive:     true,
	}
	if actor.ID != "" {
		user.CreatedBy = &actor.ID
	}
	if err := s.store.CreateAdmin(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDuplicate
		}
		return nil, unavailable(err)
	}

	sent := s.send(ctx, "welcome", func() (mail.Message, error) {
		return mail.WelcomeMessage(user.Email, user.FirstName, temp, s.loginURL)
	})

	s.auditor.Record(ctx, actor, model.AuditCreateUser, "user", user.ID, model.JSONDoc{
		"email":     user.Email,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
	})

	res := &CreateUserResult{User: user, EmailSent: sent}
	if s.devMode {
		res.TempPassword = temp
	}
	return res, nil
}

// UpdateUser rewrites the profile of an admin-table account.
func (s *AccountService) UpdateUser(ctx context.Context, actor Actor, id string, in UpdateUserInput) (*model.Admin, error) {
	if id == actor.ID && (!in.IsActive || in.Role != model.RoleAdmin) {
		return nil, ErrSelfAction
	}
	user, err := s.store.UpdateAdmin(ctx, id, store.AdminUpdate{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     in.Email,
		Phone:     in.Phone,
		BirthDate: in.BirthDate,
		Role:      in.Role,
		IsActive:  in.IsActive,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return nil, ErrDuplicate
	case err != nil:
		return nil, unavailable(err)
	}

	if !in.IsActive {
		s.endSessions(ctx, model.KindAdmin, id, "deactivated")
	}

	s.auditor.Record(ctx, actor, model.AuditUpdateUser, "user", id, model.JSONDoc{
		"firstName": user.FirstName,
		"lastName":  user.LastName,
		"email":     user.Email,
		"isActive":  user.IsActive,
		"role":      user.Role,
	})
	return user, nil
}

// DeactivateUser disables an admin-table account and ends its sessions.
// Accounts are never physically deleted.
func (s *AccountService) DeactivateUser(ctx context.Context, actor Actor, id string) error {
	if id == actor.ID {
		return ErrSelfAction
	}
	user, err := s.store.GetAdmin(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable(err)
	}
	if err := s.store.SetAdminActive(ctx, id, false); err != nil {
		return unavailable(err)
	}
	s.endSessions(ctx, model.KindAdmin, id, "deactivated")

	s.auditor.Record(ctx, actor, model.AuditDeleteUser, "user", id, model.JSONDoc{"email": user.Email})
	return nil
}

// ResetPasswordResult reports a password reset. NewPassword is only set in
// development.
type ResetPasswordResult struct {
	EmailSent           bool
	NewPassword         string
	SessionsInvalidated int
}

// ResetPassword issues a new temporary password to another account, forces
// a change on next sign-in and ends every session of the account.
func (s *AccountService) ResetPassword(ctx context.Context, actor Actor, kind model.PrincipalKind, id string) (*ResetPasswordResult, error) {
	if kind == model.KindAdmin && id == actor.ID {
		return nil, ErrSelfAction
	}
	p, err := s.store.GetPrincipal(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if p.Member != nil && p.Member.Username == nil {
		return nil, ErrNoLogin
	}

	temp, err := password.Temporary()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(temp)
	if err != nil {
		return nil, err
	}
	n, err := s.store.ResetPassword(ctx, kind, id, hash)
	if err != nil {
		return nil, unavailable(err)
	}
	metrics.RecordSessionsInvalidated("password_reset", n)

	sent := false
	if p.Admin != nil {
		sent = s.send(ctx, "password reset", func() (mail.Message, error) {
			return mail.PasswordResetMessage(p.Admin.Email, p.Admin.FirstName, temp, s.loginURL)
		})
	}

	s.auditor.Record(ctx, actor, model.AuditResetPassword, "user", id, model.JSONDoc{
		"kind":      string(kind),
		"handle":    p.Handle,
		"emailSent": sent,
	})

	res := &ResetPasswordResult{EmailSent: sent, SessionsInvalidated: n}
	if s.devMode {
		res.NewPassword = temp
	}
	return res, nil
}

// ProvisionResult is a member login created by an administrator. The
// initial password equals the username and must be changed on first use.
type ProvisionResult struct {
	Username        string
	InitialPassword string
}

// ProvisionMemberLogin gives a family member credentials. An empty username
// defaults to "first.last".
func (s *AccountService) ProvisionMemberLogin(ctx context.Context, actor Actor, memberID, username string) (*ProvisionResult, error) {
	m, err := s.store.GetFamilyMember(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		username = model.DefaultUsername(m.FirstName, m.LastName)
	}

	hash, err := s.hasher.Hash(username)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetMemberCredentials(ctx, memberID, username, hash, false); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDuplicate
		}
		return nil, unavailable(err)
	}

	s.auditor.Record(ctx, actor, model.AuditProvisionLogin, "family_member", memberID, model.JSONDoc{
		"username": username,
	})
	return &ProvisionResult{Username: username, InitialPassword: username}, nil
}

func (s *AccountService) endSessions(ctx context.Context, kind model.PrincipalKind, id, reason string) {
	n, err := s.store.DeactivatePrincipalSessions(ctx, kind, id)
	if err != nil {
		s.logger.Error("deactivate sessions", "kind", kind, "id", id, "error", err)
		return
	}
	metrics.RecordSessionsInvalidated(reason, n)
}

func (s *AccountService) send(ctx context.Context, what string, build func() (mail.Message, error)) bool {
	msg, err := build()
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.logger.Error("send mail", "mail", what, "error", err)
		return false
	}
	return true
}
