package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "session_token"

// Authenticator resolves request credentials to a principal.
// *service.AuthService satisfies it.
type Authenticator interface {
	ResolveSession(ctx context.Context, token string) (*model.Principal, error)
	AuthenticateJWT(ctx context.Context, token string) (*model.Principal, error)
}

// CookieConfig controls the attributes of the session cookie.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

// Set writes the session cookie for token.
func (c CookieConfig) Set(w http.ResponseWriter, token string) {
	maxAge := c.MaxAge
	if maxAge <= 0 {
		maxAge = service.DefaultSessionTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie on the client.
func (c CookieConfig) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the session token sent with the request, or "".
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// resolve authenticates the request. The session cookie always wins; the
// bearer JWT is consulted only when no cookie was sent.
func resolve(auth Authenticator, r *http.Request) (*model.Principal, error) {
	if token := SessionToken(r); token != "" {
		return auth.ResolveSession(r.Context(), token)
	}
	if token := bearerToken(r); token != "" {
		return auth.AuthenticateJWT(r.Context(), token)
	}
	return nil, service.ErrUnauthenticated
}

// Authenticate returns an HTTP middleware that requires a valid session
// cookie (or, without a cookie, a legacy admin bearer token). On success
// the principal is attached to the request context; otherwise an error
// response is written and the chain stops.
func Authenticate(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolve(auth, r)
			if err != nil {
				status, msg := authFailure(err)
				logAuthFailure(logger, r, status, err)
				writeAuthError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth attaches a principal when the request carries valid
// credentials and otherwise lets the request through anonymously.
func OptionalAuth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := resolve(auth, r)
			if err != nil {
				if errors.Is(err, service.ErrSessionCollision) {
					logAuthFailure(logger, r, http.StatusInternalServerError, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin enforces the admin role. It must run after Authenticate.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !p.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMember admits any authenticated principal.
func RequireMember() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetPrincipal(r.Context()) == nil {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, AuthPrincipalKey, p)
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *model.Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*model.Principal); ok {
		return p
	}
	return nil
}

// ClientMeta describes the caller for session and audit records. RemoteAddr
// has already been rewritten by chi's RealIP when the server runs behind a
// proxy.
func ClientMeta(r *http.Request) model.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return model.ClientMeta{IPAddress: ip, UserAgent: r.UserAgent()}
}

func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrSessionCollision):
		return http.StatusInternalServerError, "Internal server error"
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	case errors.Is(err, service.ErrAccountDisabled):
		return http.StatusForbidden, "Account is disabled"
	case errors.Is(err, service.ErrSessionExpired), errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "Session expired"
	default:
		return http.StatusUnauthorized, "Authentication required"
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, status int, err error) {
	if logger == nil {
		return
	}
	attrs := []any{
		"path", r.URL.Path,
		"status", status,
		"request_id", GetRequestID(r.Context()),
		"remote_addr", r.RemoteAddr,
		"error", err,
	}
	switch {
	case errors.Is(err, service.ErrSessionCollision):
		logger.Error("session token kind collision", append(attrs, "severity", "critical")...)
	case status >= 500:
		logger.Error("authentication failed", attrs...)
	default:
		logger.Debug("authentication failed", attrs...)
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":` + strconv.Itoa(status) + `,"message":` + strconv.Quote(message) + `}}`))
}
