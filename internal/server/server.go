package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/francislegacy/legacy/internal/handler"
	"github.com/francislegacy/legacy/internal/metrics"
	"github.com/francislegacy/legacy/internal/server/middleware"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes

	// Per-IP request limits. AuthIPRequests applies to /api/auth only.
	IPRequests     int
	IPWindow       time.Duration
	AuthIPRequests int

	CookieSecure bool
	StorageQuota int64
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            5000,
		Environment:     "development",
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"http://localhost:3000"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		IPRequests:      100,
		IPWindow:        15 * time.Minute,
		AuthIPRequests:  20,
	}
}

// Deps are the services the routes are served from.
type Deps struct {
	Store    *store.Store
	Auth     *service.AuthService
	Accounts *service.AccountService
	Auditor  *service.Auditor
	// Objects is nil when no bucket is configured.
	Objects handler.ObjectStorage
	// Redis is checked by /readyz when the shared limiter is in use.
	Redis handler.Pinger
}

// Server is the top-level HTTP server. It owns the Chi router and the
// services behind it.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	onShutdown []func()
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	d := s.deps

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	r.Use(metrics.Middleware)
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	// --- Health checks and metrics (no auth, no rate limit) ---
	health := handler.NewHealthHandler(s.cfg.Environment, map[string]handler.Pinger{
		"database": d.Store,
		"redis":    d.Redis,
	})
	r.Get("/health", health.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	authn := middleware.Authenticate(d.Auth, s.logger)
	optional := middleware.OptionalAuth(d.Auth, s.logger)
	admin := middleware.RequireAdmin()
	member := middleware.RequireMember()

	// --- API routes ---
	r.Route("/api", func(r chi.Router) {
		if s.cfg.IPRequests > 0 {
			r.Use(middleware.RateLimit(s.cfg.IPRequests, s.cfg.IPWindow))
		}

		r.Route("/auth", func(r chi.Router) {
			if s.cfg.AuthIPRequests > 0 {
				r.Use(middleware.RateLimit(s.cfg.AuthIPRequests, s.cfg.IPWindow))
			}
			h := handler.NewAuthHandler(d.Auth, middleware.CookieConfig{Secure: s.cfg.CookieSecure}, s.logger)

			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Group(func(r chi.Router) {
				r.Use(authn, member)
				r.Post("/change-password", h.ChangePassword)
				r.Get("/me", h.Me)
			})
		})

		r.Route("/family", func(r chi.Router) {
			h := handler.NewFamilyHandler(d.Store, d.Accounts, d.Auditor, s.logger)

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

		posts := func(h *handler.PostHandler) func(chi.Router) {
			return func(r chi.Router) {
				r.With(optional).Get("/", h.List)
				r.With(optional).Get("/{id}", h.Get) // slug
				r.Group(func(r chi.Router) {
					r.Use(authn, admin)
					r.Post("/", h.Create)
					r.Put("/{id}", h.Update)
					r.Delete("/{id}", h.Delete)
				})
			}
		}
		r.Route("/blog", posts(handler.NewBlogHandler(d.Store, d.Auditor, s.logger)))
		r.Route("/news", posts(handler.NewNewsHandler(d.Store, d.Auditor, s.logger)))

		r.Route("/archives", func(r chi.Router) {
			h := handler.NewArchiveHandler(d.Store, d.Objects, s.logger)

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
			h := handler.NewTimelineHandler(d.Store, d.Auditor, s.logger)

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

		subs := handler.NewSubmissionHandler(d.Store, d.Auditor, s.logger)

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
			h := handler.NewAdminHandler(d.Store, d.Accounts, d.Auth, d.Auditor, s.cfg.StorageQuota, s.logger)

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

	s.router = r
}

// RegisterOnShutdown registers fn to run after the HTTP server has drained,
// in registration order and before the store is closed.
func (s *Server) RegisterOnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before stopping background workers and closing the store.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "environment", s.cfg.Environment)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	shutdownErr := s.httpServer.Shutdown(shutdownCtx)

	for _, fn := range s.onShutdown {
		fn()
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Close(); err != nil {
			s.logger.Warn("close store", "error", err)
		}
	}

	if shutdownErr != nil {
		return fmt.Errorf("server shutdown: %w", shutdownErr)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
