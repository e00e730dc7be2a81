package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/francislegacy/legacy/internal/config"
	"github.com/francislegacy/legacy/internal/handler"
	"github.com/francislegacy/legacy/internal/mail"
	"github.com/francislegacy/legacy/internal/ratelimit"
	"github.com/francislegacy/legacy/internal/server"
	"github.com/francislegacy/legacy/internal/service"
	"github.com/francislegacy/legacy/internal/storage"
)

const devJWTSecret = "legacy-dev-secret-change-me"

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP server for the public site, member area and administrator console.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, dev)
		},
	}

	cmd.Flags().IntP("port", "p", 5000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, temporary passwords in responses)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context, cfg *config.YAMLConfig, dev bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dev {
		cfg.Environment = "development"
	}
	logger := newLogger(os.Stderr, cfg.Logging, dev)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		if cfg.IsProduction() {
			return fmt.Errorf("auth.jwt_secret must be set in production")
		}
		jwtSecret = devJWTSecret
		logger.Warn("auth.jwt_secret not set, using development secret")
	}

	maxBody, err := config.ParseByteSize(cfg.Server.MaxBodySize)
	if err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}

	// 1. Database
	st, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	logger.Info("store initialized", "driver", st.Driver())

	hasAdmin, err := st.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: legacy admin create")
	}

	// 2. Login limiter
	limiterCfg := ratelimit.Config{
		Window:      config.Duration(cfg.RateLimit.Window, 15*time.Minute),
		MaxAttempts: cfg.RateLimit.MaxAttempts,
	}
	var (
		limiter     service.LoginLimiter
		redisPinger handler.Pinger
		cleanups    []func()
	)
	switch strings.ToLower(cfg.RateLimit.Backend) {
	case "redis":
		rl, err := ratelimit.NewRedisLimiterFromURL(cfg.RateLimit.RedisURL, st, limiterCfg, logger)
		if err != nil {
			st.Close()
			return fmt.Errorf("rate_limit.redis_url: %w", err)
		}
		limiter, redisPinger = rl, rl
		cleanups = append(cleanups, func() {
			if err := rl.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		})
		logger.Info("login limiter initialized", "backend", "redis")
	default:
		ml := ratelimit.New(st, limiterCfg, logger)
		ml.Start(ctx)
		limiter = ml
		cleanups = append(cleanups, ml.Stop)
		logger.Info("login limiter initialized", "backend", "memory")
	}

	// 3. Mail
	var mailer mail.Sender = mail.LogSender{Logger: logger}
	if cfg.Mail.SMTPHost != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:       cfg.Mail.SMTPHost,
			Port:       cfg.Mail.SMTPPort,
			Username:   cfg.Mail.Username,
			Password:   cfg.Mail.Password,
			From:       cfg.Mail.From,
			FromName:   cfg.Mail.FromName,
			Encryption: cfg.Mail.Encryption,
		})
	} else {
		logger.Warn("mail.smtp_host not set, outgoing mail will only be logged")
	}

	// 4. Object storage
	deps := server.Deps{Store: st, Redis: redisPinger}
	if cfg.Storage.Bucket != "" {
		objects, err := storage.New(ctx, storage.Config{
			Bucket:         cfg.Storage.Bucket,
			Region:         cfg.Storage.Region,
			Endpoint:       cfg.Storage.Endpoint,
			AccessKey:      cfg.Storage.AccessKey,
			SecretKey:      cfg.Storage.SecretKey,
			UploadExpiry:   config.Duration(cfg.Storage.UploadExpiry, 5*time.Minute),
			DownloadExpiry: config.Duration(cfg.Storage.DownloadExpiry, time.Hour),
		})
		if err != nil {
			st.Close()
			return fmt.Errorf("init storage: %w", err)
		}
		deps.Objects = objects
		logger.Info("object storage initialized", "bucket", objects.Bucket())
	} else {
		logger.Warn("storage.bucket not set, archive uploads are disabled")
	}

	// 5. Services
	hasher := newHasher(cfg)
	deps.Auth = service.NewAuthService(st, hasher, limiter, service.AuthOptions{
		SessionTTL: config.Duration(cfg.Auth.SessionTTL, 24*time.Hour),
		JWTSecret:  jwtSecret,
		Logger:     logger,
	})
	deps.Auditor = service.NewAuditor(st, logger)
	deps.Accounts = service.NewAccountService(st, hasher, mailer, deps.Auditor, service.AccountOptions{
		Environment: cfg.Environment,
		LoginURL:    loginURL(cfg),
		Logger:      logger,
	})

	// 6. HTTP server
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Environment:     cfg.Environment,
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, 30*time.Second),
		CORSOrigins:     cfg.Server.CORS.Origins,
		MaxBodySize:     maxBody,
		IPRequests:      cfg.RateLimit.IPRequests,
		IPWindow:        config.Duration(cfg.RateLimit.IPWindow, 15*time.Minute),
		AuthIPRequests:  cfg.RateLimit.AuthIPRequests,
		CookieSecure:    cfg.Auth.CookieSecure || cfg.IsProduction(),
		StorageQuota:    cfg.Storage.QuotaBytes,
	}

	srv := server.New(srvCfg, deps, logger)
	for _, fn := range cleanups {
		srv.RegisterOnShutdown(fn)
	}

	printStartup(logger, srvCfg)
	return srv.ListenAndServe()
}

func loginURL(cfg *config.YAMLConfig) string {
	if cfg.Server.PublicURL != "" {
		return strings.TrimRight(cfg.Server.PublicURL, "/") + "/login"
	}
	return fmt.Sprintf("http://localhost:%d/login", cfg.Server.Port)
}

func printStartup(logger *slog.Logger, cfg server.Config) {
	fmt.Printf("→ legacy %s (%s)\n", versionString(), cfg.Environment)
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/health\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Metrics:    http://%s:%d/metrics\n", cfg.Host, cfg.Port)
	fmt.Println()
	logger.Debug("server config", "cors_origins", cfg.CORSOrigins, "max_body_size", cfg.MaxBodySize)
}
