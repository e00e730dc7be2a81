package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/francislegacy/legacy/internal/mail"
	"github.com/francislegacy/legacy/internal/model"
	"github.com/francislegacy/legacy/internal/password"
	"github.com/francislegacy/legacy/internal/ratelimit"
	"github.com/francislegacy/legacy/internal/server/middleware"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
)

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server *Server
	store  *store.Store
	auth   *service.AuthService
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server. mutate may adjust the config before routes are built.
func newTestEnv(t *testing.T, mutate func(*Config, *Deps)) *testEnv {
	t.Helper()

	st, err := store.NewStore(context.Background(), store.Options{}) // in-memory SQLite
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hasher := password.NewHasher(4)
	limiter := ratelimit.New(st, ratelimit.Config{Window: time.Minute, MaxAttempts: 5}, logger)
	auth := service.NewAuthService(st, hasher, limiter, service.AuthOptions{JWTSecret: testJWTSecret, Logger: logger})
	auditor := service.NewAuditor(st, logger)
	accounts := service.NewAccountService(st, hasher, mail.LogSender{Logger: logger}, auditor, service.AccountOptions{
		Environment: "test",
		Logger:      logger,
	})

	cfg := DefaultConfig()
	cfg.Environment = "test"
	deps := Deps{Store: st, Auth: auth, Accounts: accounts, Auditor: auditor}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := st.CreateAdmin(context.Background(), &model.Admin{
		Email:           "admin@example.com",
		PasswordHash:    hash,
		FirstName:       "Grace",
		LastName:        "Francis",
		Role:            model.RoleAdmin,
		IsActive:        true,
		PasswordChanged: true,
	}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	return &testEnv{server: New(cfg, deps, logger), store: st, auth: auth}
}

// do executes an HTTP request against the test server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v (body: %s)", err, rr.Body.String())
	}
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rr.Code, want, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health and metrics
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/health", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "OK" || resp["environment"] != "test" {
		t.Errorf("unexpected health %v", resp)
	}
	if _, err := time.Parse(time.RFC3339Nano, resp["timestamp"]); err != nil {
		t.Errorf("timestamp %q: %v", resp["timestamp"], err)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q", resp["status"])
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected readiness %+v", resp)
	}
	if _, ok := resp.Checks["redis"]; ok {
		t.Error("redis should not be checked when not configured")
	}
}

func TestReadyzDegraded(t *testing.T) {
	env := newTestEnv(t, func(_ *Config, d *Deps) {
		d.Redis = fakePinger{err: errors.New("connection refused")}
	})

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "degraded" || resp.Checks["database"] != "ok" {
		t.Errorf("unexpected readiness %+v", resp)
	}
	if !strings.Contains(resp.Checks["redis"], "connection refused") {
		t.Errorf("redis check = %q", resp.Checks["redis"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "GET", "/api/family", nil, nil)

	rr := env.do(t, "GET", "/metrics", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "legacy_http_requests_total") {
		t.Error("expected request counter in /metrics output")
	}
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "GET", "/api/nothing-here", nil, nil)
	assertStatus(t, rr, http.StatusNotFound)
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error.Message != "Route not found" {
		t.Errorf("message = %q", resp.Error.Message)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "PATCH", "/api/timeline", nil, nil)
	assertStatus(t, rr, http.StatusMethodNotAllowed)
}

func TestFullWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)

	// Login sets the session cookie.
	rr := env.do(t, "POST", "/api/auth/login", jsonBody(t, map[string]string{
		"username": "admin@example.com",
		"password": testPassword,
	}), nil)
	assertStatus(t, rr, http.StatusOK)
	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("login did not set a session cookie")
	}
	cookie := map[string]string{"Cookie": session.Name + "=" + session.Value}

	// Create and read back a family member.
	rr = env.do(t, "POST", "/api/family", jsonBody(t, map[string]string{
		"first_name": "Anna",
		"last_name":  "Francis",
	}), cookie)
	assertStatus(t, rr, http.StatusCreated)
	var member model.FamilyMember
	decodeJSON(t, rr, &member)

	rr = env.do(t, "GET", "/api/family/"+member.ID, nil, nil)
	assertStatus(t, rr, http.StatusOK)

	// The admin dashboard sees it.
	rr = env.do(t, "GET", "/api/admin/dashboard/stats", nil, cookie)
	assertStatus(t, rr, http.StatusOK)
	var stats model.DashboardStats
	decodeJSON(t, rr, &stats)
	if stats.TotalFamilyMembers != 1 {
		t.Errorf("totalFamilyMembers = %d", stats.TotalFamilyMembers)
	}

	// Logout ends the session.
	rr = env.do(t, "POST", "/api/auth/logout", nil, cookie)
	assertStatus(t, rr, http.StatusOK)
	rr = env.do(t, "GET", "/api/auth/me", nil, cookie)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestBearerTokenAuth(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, err := env.store.GetAdminByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	token, err := env.auth.IssueJWT(context.Background(), admin.ID, admin.Email, time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	rr := env.do(t, "GET", "/api/admin/users", nil, map[string]string{"Authorization": "Bearer " + token})
	assertStatus(t, rr, http.StatusOK)

	rr = env.do(t, "GET", "/api/admin/users", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
	assertStatus(t, rr, http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Cross-cutting middleware
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, "OPTIONS", "/api/family", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	if rr.Code != http.StatusOK && rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q", got)
	}

	rr = env.do(t, "OPTIONS", "/api/family", nil, map[string]string{
		"Origin":                        "https://evil.example.com",
		"Access-Control-Request-Method": "POST",
	})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin was allowed: %q", got)
	}
}

func TestAuthIPRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Deps) {
		c.AuthIPRequests = 2
	})

	for i := 0; i < 2; i++ {
		rr := env.do(t, "POST", "/api/auth/logout", nil, nil)
		assertStatus(t, rr, http.StatusOK)
	}
	rr := env.do(t, "POST", "/api/auth/logout", nil, nil)
	assertStatus(t, rr, http.StatusTooManyRequests)

	// Other API routes have their own, larger budget.
	rr = env.do(t, "GET", "/api/timeline", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestRequestSizeLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Deps) {
		c.MaxBodySize = 64
	})

	rr := env.do(t, "POST", "/api/auth/login", jsonBody(t, map[string]string{
		"username": strings.Repeat("a", 100),
		"password": testPassword,
	}), nil)
	if rr.Code == http.StatusOK {
		t.Fatal("oversized body should be rejected")
	}
}

func TestRunShutsDownInOrder(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Deps) {
		c.Host = "127.0.0.1"
		c.Port = 0
		c.ShutdownTimeout = time.Second
	})

	var order []string
	env.server.RegisterOnShutdown(func() { order = append(order, "first") })
	env.server.RegisterOnShutdown(func() { order = append(order, "second") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("shutdown hooks ran as %v", order)
	}
	if err := env.store.Ping(context.Background()); err == nil {
		t.Error("store should be closed after Run returns")
	}
}
