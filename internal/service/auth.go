package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/francislegacy/legacy/internal/metrics"
	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/password"
	"github.com/francislegacy/legacy/internal/ratelimit"
	"github.com/francislegacy/legacy/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrRateLimited        = errors.New("too many authentication attempts")
	ErrSessionExpired     = errors.New("session expired")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrSessionCollision   = errors.New("session token kind collision")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrWeakPassword       = errors.New("password too short")
	ErrTokenExpired       = errors.New("token expired")
)

// DefaultSessionTTL is the lifetime of a login session.
const DefaultSessionTTL = 24 * time.Hour

// LoginLimiter counts failed logins per account. Both the in-process and the
// Redis limiter satisfy it.
type LoginLimiter interface {
	IsRateLimited(ctx context.Context, handle string) bool
	RecordFailedAttempt(ctx context.Context, handle string)
	RemainingAttempts(ctx context.Context, handle string) int
	Clear(ctx context.Context, handle string)
	ClearPrincipal(ctx context.Context, kind model.PrincipalKind, id string)
	Stats(ctx context.Context) model.RateLimitStats
	Window() time.Duration
}

// RateLimitError is returned by Login while the handle is blocked.
type RateLimitError struct {
	RemainingAttempts int
	RetryAfter        time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// AuthOptions configures an AuthService. Zero values select defaults.
type AuthOptions struct {
	SessionTTL time.Duration
	JWTSecret  string
	Logger     *slog.Logger
	Now        func() time.Time
}

// AuthService authenticates admins and family members and manages their
// sessions.
type AuthService struct {
	store      *store.Store
	hasher     *password.Hasher
	limiter    LoginLimiter
	sessionTTL time.Duration
	jwtSecret  []byte
	logger     *slog.Logger
	now        func() time.Time
}

func NewAuthService(store *store.Store, hasher *password.Hasher, limiter LoginLimiter, opts AuthOptions) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthService{
		store:      store,
		hasher:     hasher,
		limiter:    limiter,
		sessionTTL: opts.SessionTTL,
		jwtSecret:  []byte(opts.JWTSecret),
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// SessionTTL returns the lifetime given to new sessions.
func (s *AuthService) SessionTTL() time.Duration { return s.sessionTTL }

// LoginResult is a successful login.
type LoginResult struct {
	Principal *model.Principal
	Token     string
	ExpiresAt time.Time
}

// Login verifies a handle (email or username) and password and opens a
// session.
func (s *AuthService) Login(ctx context.Context, handle, plain string, meta model.ClientMeta) (*LoginResult, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || plain == "" {
		return nil, ErrInvalidCredentials
	}

	p, err := s.store.FindPrincipalByHandle(ctx, handle)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		metrics.RecordLogin("", "error")
		return nil, unavailable(err)
	}

	kind := ""
	limiterKey := model.UnknownLimiterKey(handle)
	if p != nil {
		kind = string(p.Kind)
		limiterKey = p.LimiterKey()
	}
	ctx = ratelimit.WithKey(ctx, limiterKey)

	if s.limiter.IsRateLimited(ctx, handle) {
		metrics.RecordLogin(kind, "rate_limited")
		s.logger.Warn("login blocked by rate limit", "key", limiterKey, "ip", meta.IPAddress)
		return nil, &RateLimitError{
			RemainingAttempts: s.limiter.RemainingAttempts(ctx, handle),
			RetryAfter:        s.limiter.Window(),
		}
	}

	if p == nil || p.PasswordHash() == "" {
		s.limiter.RecordFailedAttempt(ctx, handle)
		metrics.RecordLogin(kind, "invalid")
		s.logger.Info("login failed", "reason", "unknown handle", "ip", meta.IPAddress)
		return nil, ErrInvalidCredentials
	}
	if !p.IsActive {
		s.limiter.RecordFailedAttempt(ctx, handle)
		metrics.RecordLogin(kind, "disabled")
		s.logger.Info("login failed", "reason", "account disabled", "kind", p.Kind, "id", p.ID)
		return nil, ErrAccountDisabled
	}
	if err := s.hasher.Verify(p.PasswordHash(), plain); err != nil {
		s.limiter.RecordFailedAttempt(ctx, handle)
		metrics.RecordLogin(kind, "invalid")
		s.logger.Info("login failed", "reason", "password mismatch", "kind", p.Kind, "id", p.ID)
		return nil, ErrInvalidCredentials
	}

	s.limiter.Clear(ctx, handle)

	token, err := newSessionToken(p.Kind)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &model.Session{
		Token:         token,
		PrincipalKind: p.Kind,
		PrincipalID:   p.ID,
		ExpiresAt:     now.Add(s.sessionTTL),
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		CreatedAt:     now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		metrics.RecordLogin(kind, "error")
		return nil, unavailable(err)
	}
	if err := s.store.UpdateLastLogin(ctx, p.Kind, p.ID); err != nil {
		s.logger.Error("update last login", "kind", p.Kind, "id", p.ID, "error", err)
	}

	metrics.RecordLogin(kind, "success")
	s.logger.Info("login succeeded", "kind", p.Kind, "id", p.ID, "ip", meta.IPAddress)
	return &LoginResult{Principal: p, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

// Logout deactivates the session behind token. Empty and unknown tokens are
// ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	kind, _ := tokenKind(token)
	if err := s.store.DeactivateSession(ctx, token, kind); err != nil {
		return unavailable(err)
	}
	metrics.RecordSessionsInvalidated("logout", 1)
	return nil
}

// ResolveSession returns the principal owning an active session token.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	kind, prefixed := tokenKind(token)

	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, unavailable(err)
	}

	if prefixed && sess.PrincipalKind != kind {
		s.logger.Error("session token prefix does not match session kind",
			"severity", "critical",
			"token_kind", kind,
			"session_kind", sess.PrincipalKind,
			"principal_id", sess.PrincipalID,
		)
		return nil, ErrSessionCollision
	}
	if !sess.IsActive {
		return nil, ErrUnauthenticated
	}
	if sess.Expired(s.now()) {
		if err := s.store.DeactivateSession(ctx, token, ""); err != nil {
			s.logger.Error("deactivate expired session", "error", err)
		} else {
			metrics.RecordSessionsInvalidated("expired", 1)
		}
		return nil, ErrSessionExpired
	}

	p, err := s.store.GetPrincipal(ctx, sess.PrincipalKind, sess.PrincipalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if !p.IsActive {
		return nil, ErrAccountDisabled
	}
	return p, nil
}

// ChangePasswordResult reports the side effects of a password change.
type ChangePasswordResult struct {
	SessionsInvalidated int
	RateLimitCleared    bool
}

// ChangePassword replaces the principal's password after verifying the
// current one. Every session of the principal is deactivated.
func (s *AuthService) ChangePassword(ctx context.Context, kind model.PrincipalKind, id, current, next string) (*ChangePasswordResult, error) {
	if len(next) < password.MinLength {
		return nil, ErrWeakPassword
	}

	p, err := s.store.GetPrincipal(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if err := s.hasher.Verify(p.PasswordHash(), current); err != nil {
		return nil, ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return nil, err
	}
	n, err := s.store.ChangePassword(ctx, kind, id, hash)
	if err != nil {
		return nil, unavailable(err)
	}
	s.limiter.ClearPrincipal(ctx, kind, id)

	metrics.RecordSessionsInvalidated("password_change", n)
	s.logger.Info("password changed", "kind", kind, "id", id, "sessions_invalidated", n)
	return &ChangePasswordResult{SessionsInvalidated: n, RateLimitCleared: true}, nil
}

// RateLimitStats reports the login limiter state.
func (s *AuthService) RateLimitStats(ctx context.Context) model.RateLimitStats {
	return s.limiter.Stats(ctx)
}

// ClearRateLimit unblocks a login handle.
func (s *AuthService) ClearRateLimit(ctx context.Context, handle string) {
	s.limiter.Clear(ctx, handle)
}

// ---------------------------------------------------------------------------
// Legacy admin bearer tokens
// ---------------------------------------------------------------------------

type JWTPrincipal struct {
	AdminID string
	Email   string
}

// ValidateJWT verifies a JWT bearer token and returns the associated admin identity.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*JWTPrincipal, error) {
	if len(s.jwtSecret) == 0 {
		return nil, ErrUnauthenticated
	}
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(jwtIssuer), jwt.WithTimeFunc(s.now))
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || !token.Valid || claims.AdminID == "" {
		return nil, ErrInvalidCredentials
	}

	return &JWTPrincipal{
		AdminID: claims.AdminID,
		Email:   claims.Email,
	}, nil
}

// IssueJWT creates a new signed JWT token for the given admin.
func (s *AuthService) IssueJWT(ctx context.Context, adminID, email string, ttl time.Duration) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := s.now()
	claims := jwtClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    jwtIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// AuthenticateJWT resolves a bearer token to the admin-table principal it
// names.
func (s *AuthService) AuthenticateJWT(ctx context.Context, tokenStr string) (*model.Principal, error) {
	jp, err := s.ValidateJWT(ctx, tokenStr)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPrincipal(ctx, model.KindAdmin, jp.AdminID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if !p.IsActive {
		return nil, ErrAccountDisabled
	}
	return p, nil
}

const jwtIssuer = "legacy"

type jwtClaims struct {
	AdminID string `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// tokenKind reads the principal kind from a session token prefix. Legacy
// tokens carry no prefix and report ok=false.
func tokenKind(token string) (model.PrincipalKind, bool) {
	for _, k := range []model.PrincipalKind{model.KindAdmin, model.KindMember} {
		if strings.HasPrefix(token, k.TokenPrefix()) {
			return k, true
		}
	}
	return "", false
}

func newSessionToken(kind model.PrincipalKind) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return kind.TokenPrefix() + hex.EncodeToString(b), nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
