package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"huddle/internal/account"
	"huddle/internal/api"
	"huddle/internal/auth"
	"huddle/internal/config"
	"huddle/internal/db"
	"huddle/internal/email"
	"huddle/internal/ratelimit"
	"huddle/internal/security"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting server", "name", cfg.Server.Name, "environment", cfg.Server.Environment)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	userRepo := db.NewUserRepository(database)
	sessionRepo := db.NewSessionRepository(database)
	resetRepo := db.NewPasswordResetRepository(database)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	cleanupService := db.NewCleanupService(sessionRepo, resetRepo, cfg.Database.CleanupInterval)
	go cleanupService.Start(backgroundCtx)

	var mailer account.Mailer
	if cfg.EmailEnabled() {
		mailer = email.NewSMTPService(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
			cfg.Email.SMTP.From,
			cfg.Server.BaseURL,
		)
		slog.Info("email configured", "host", cfg.Email.SMTP.Host, "port", cfg.Email.SMTP.Port)
	} else {
		slog.Warn("email not configured, password reset mails are disabled")
	}

	issuer := auth.NewSessionIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, cfg.Production(), cfg.Auth.CookieDomain)
	accounts := account.NewService(userRepo, sessionRepo, resetRepo, issuer, mailer, cfg.Auth.PasswordResetTTL)

	ipResolver, err := api.NewClientIPResolver(cfg.Security.TrustedProxies)
	if err != nil {
		slog.Error("invalid trusted proxies", "error", err)
		os.Exit(1)
	}

	limiters := api.Limiters{
		Auth:          ratelimit.NewLimiter(cfg.RateLimit.Auth.Apply(ratelimit.AuthPolicy)),
		API:           ratelimit.NewLimiter(cfg.RateLimit.API.Apply(ratelimit.APIPolicy)),
		ProfileUpdate: ratelimit.NewLimiter(cfg.RateLimit.ProfileUpdate.Apply(ratelimit.ProfileUpdatePolicy)),
		PasswordReset: ratelimit.NewLimiter(cfg.RateLimit.PasswordReset.Apply(ratelimit.PasswordResetPolicy)),
	}
	for _, l := range []*ratelimit.Limiter{limiters.Auth, limiters.API, limiters.ProfileUpdate, limiters.PasswordReset} {
		go l.Start(backgroundCtx)
	}

	server := api.NewServer(api.ServerOptions{
		Accounts:                accounts,
		Issuer:                  issuer,
		Database:                database,
		Limiters:                limiters,
		OriginGuard:             security.NewOriginGuard(cfg.Production(), cfg.Security.AllowedOrigins),
		IPResolver:              ipResolver,
		BlockSuspicious:         cfg.Security.BlockSuspicious,
		GlobalRequestsPerMinute: cfg.Security.GlobalRequestsPerMinute,
	})

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", addr, "base_url", cfg.Server.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")

	backgroundCancel()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}
	accounts.Wait()

	slog.Info("server stopped")
}
