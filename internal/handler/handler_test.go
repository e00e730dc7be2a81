package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/francislegacy/legacy/internal/mail"
	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/password"
	"github.com/francislegacy/legacy/internal/ratelimit"
	"github.com/francislegacy/legacy/internal/server/middleware"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.Store
	auth     *service.AuthService
	accounts *service.AccountService
	hasher   *password.Hasher
	objects  *fakeObjects
	router   chi.Router
}

// newTestEnv creates a fresh test environment with an in-memory store, the
// services behind the handlers, and a Chi router with the real auth
// middleware in front of each route group.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewStore(context.Background(), store.Options{}) // in-memory SQLite
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := password.NewHasher(4)
	limiter := ratelimit.New(st, ratelimit.Config{Window: 15 * time.Minute, MaxAttempts: 3}, logger)
	auth := service.NewAuthService(st, hasher, limiter, service.AuthOptions{JWTSecret: testJWTSecret, Logger: logger})
	auditor := service.NewAuditor(st, logger)
	accounts := service.NewAccountService(st, hasher, mail.LogSender{Logger: logger}, auditor, service.AccountOptions{
		Environment: "development",
		Logger:      logger,
	})
	objects := &fakeObjects{}

	authn := middleware.Authenticate(auth, logger)
	optional := middleware.OptionalAuth(auth, logger)
	admin := middleware.RequireAdmin()
	member := middleware.RequireMember()

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			h := NewAuthHandler(auth, middleware.CookieConfig{}, logger)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(authn, member).Post("/change-password", h.ChangePassword)
			r.With(authn, member).Get("/me", h.Me)
		})

		r.Route("/family", func(r chi.Router) {
			h := NewFamilyHandler(st, accounts, auditor, logger)
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
			r.Group(func(r chi.Router) {
				r.Use(authn, admin)
				r.Post("/", h.Create)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
				r.Post("/{id}/credentials", h.ProvisionLogin)
			})
		})

		for prefix, h := range map[string]*PostHandler{
			"/blog": NewBlogHandler(st, auditor, logger),
			"/news": NewNewsHandler(st, auditor, logger),
		} {
			h := h
			r.Route(prefix, func(r chi.Router) {
				r.With(optional).Get("/", h.List)
				r.With(optional).Get("/{id}", h.Get)
				r.Group(func(r chi.Router) {
					r.Use(authn, admin)
					r.Post("/", h.Create)
					r.Put("/{id}", h.Update)
					r.Delete("/{id}", h.Delete)
				})
			})
		}

		r.Route("/archives", func(r chi.Router) {
			h := NewArchiveHandler(st, objects, logger)
			r.Get("/", h.List)
			r.Get("/stats", h.Stats)
			r.Group(func(r chi.Router) {
				r.Use(authn, member)
				r.Get("/user/my-archives", h.Mine)
				r.Post("/upload-url", h.UploadURL)
				r.Post("/", h.Create)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
			r.Get("/{id}", h.Get)
			r.Get("/{id}/download", h.Download)
		})

		r.Route("/timeline", func(r chi.Router) {
			h := NewTimelineHandler(st, auditor, logger)
			r.Get("/", h.List)
			r.Get("/range", h.Range)
			r.Get("/type/{type}", h.ByType)
			r.Get("/{id}", h.Get)
			r.Group(func(r chi.Router) {
				r.Use(authn, admin)
				r.Post("/", h.Create)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
		})

		subs := NewSubmissionHandler(st, auditor, logger)
		r.Route("/submissions", func(r chi.Router) {
			r.Use(authn, member)
			r.Get("/my-submissions", subs.Mine)
			r.Post("/", subs.Create)
			r.Delete("/{id}", subs.Delete)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Get("/", subs.List)
				r.Get("/stats/overview", subs.Stats)
				r.Get("/{id}", subs.Get)
				r.Patch("/{id}/review", subs.Review)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn, admin)
			h := NewAdminHandler(st, accounts, auth, auditor, 0, logger)
			r.Get("/dashboard/stats", h.Dashboard)
			r.Get("/users", h.ListUsers)
			r.Post("/users", h.CreateUser)
			r.Put("/users/{id}", h.UpdateUser)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Post("/users/{id}/reset-password", h.ResetPassword)
			r.Get("/submissions", subs.List)
			r.Put("/submissions/{id}", subs.Review)
			r.Get("/audit-log", h.AuditLog)
			r.Get("/storage/stats", h.StorageStats)
			r.Get("/rate-limits", h.RateLimits)
			r.Delete("/rate-limits/{handle}", h.ClearRateLimit)
		})
	})

	return &testEnv{
		store:    st,
		auth:     auth,
		accounts: accounts,
		hasher:   hasher,
		objects:  objects,
		router:   r,
	}
}

// seedAdmin creates an active admins row with the given role.
func (e *testEnv) seedAdmin(t *testing.T, email, role string) *model.Admin {
	t.Helper()
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := &model.Admin{
		Email:           email,
		PasswordHash:    hash,
		FirstName:       "Grace",
		LastName:        "Francis",
		Role:            role,
		IsActive:        true,
		PasswordChanged: true,
	}
	if err := e.store.CreateAdmin(context.Background(), a); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return a
}

// seedMember creates a family member with a login.
func (e *testEnv) seedMember(t *testing.T, first, username string) *model.FamilyMember {
	t.Helper()
	ctx := context.Background()
	m, err := e.store.CreateFamilyMember(ctx, store.FamilyMemberInput{FirstName: first, LastName: "Francis"})
	if err != nil {
		t.Fatalf("seedMember: %v", err)
	}
	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := e.store.SetMemberCredentials(ctx, m.ID, username, hash, true); err != nil {
		t.Fatalf("SetMemberCredentials: %v", err)
	}
	return m
}

// login signs in through the HTTP endpoint and returns the session cookie.
func (e *testEnv) login(t *testing.T, handle string) *http.Cookie {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/login", toJSON(t, map[string]string{
		"username": handle,
		"password": testPassword,
	}), nil)
	assertStatus(t, rr, http.StatusOK)
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatalf("login %s: no session cookie", handle)
	return nil
}

// adminCookie seeds an administrator and returns a session for them.
func (e *testEnv) adminCookie(t *testing.T) *http.Cookie {
	t.Helper()
	e.seedAdmin(t, "admin@example.com", model.RoleAdmin)
	return e.login(t, "admin@example.com")
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v; body = %s", err, rr.Body.String())
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) model.ErrorDetail {
	t.Helper()
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	return resp.Error
}

func strPtr(s string) *string { return &s }
