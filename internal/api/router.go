package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"huddle/internal/auth"
	"huddle/internal/constants"
	"huddle/internal/ratelimit"
	"huddle/internal/security"
)

// Limiters holds one limiter per rate-limit policy.
type Limiters struct {
	Auth          *ratelimit.Limiter
	API           *ratelimit.Limiter
	ProfileUpdate *ratelimit.Limiter
	PasswordReset *ratelimit.Limiter
}

type ServerOptions struct {
	Accounts                AccountService
	Issuer                  *auth.SessionIssuer
	Database                Pinger
	Limiters                Limiters
	OriginGuard             *security.OriginGuard
	IPResolver              *ClientIPResolver
	BlockSuspicious         bool
	GlobalRequestsPerMinute int
}

type Server struct {
	router *chi.Mux
}

func NewServer(opts ServerOptions) *Server {
	ips := opts.IPResolver
	authHandler := NewAuthHandler(opts.Accounts, opts.Issuer, ips)
	userHandler := NewUserHandler(opts.Accounts, opts.Issuer)
	healthHandler := NewHealthHandler(opts.Database)

	authMiddleware := NewAuthMiddleware(opts.Accounts, opts.Issuer.CookieName())

	authLimit := RateLimitMiddleware(opts.Limiters.Auth, ips)
	apiLimit := RateLimitMiddleware(opts.Limiters.API, ips)
	profileLimit := RateLimitMiddleware(opts.Limiters.ProfileUpdate, ips)
	resetLimit := RateLimitMiddleware(opts.Limiters.PasswordReset, ips)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)
	r.Use(corsMiddleware(opts.OriginGuard))
	if opts.GlobalRequestsPerMinute > 0 {
		r.Use(floodGuard(opts.GlobalRequestsPerMinute, ips))
	}

	r.Get("/health", healthHandler.Check)

	r.Route("/api", func(r chi.Router) {
		r.Use(originMiddleware(opts.OriginGuard, ips))
		r.Use(suspiciousActivityMiddleware(opts.BlockSuspicious, ips))
		r.Use(maxBodySizeMiddleware(constants.MaxRequestBodyBytes))

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/register", authHandler.Register)
			r.With(authLimit).Post("/signin", authHandler.SignIn)
			r.With(resetLimit).Post("/password-reset", authHandler.RequestPasswordReset)
			r.With(resetLimit).Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.With(apiLimit).Post("/signout", authHandler.SignOut)
				r.With(apiLimit).Get("/session", authHandler.Session)
				r.With(apiLimit).Post("/session/refresh", authHandler.RefreshSession)
				r.With(authLimit).Post("/verify-password", authHandler.VerifyPassword)
			})
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.With(apiLimit).Get("/profile", userHandler.GetProfile)
			r.With(profileLimit).Patch("/profile", userHandler.UpdateProfile)
			r.With(authLimit).Delete("/profile", userHandler.DeactivateAccount)
			r.With(authLimit).Patch("/password", userHandler.ChangePassword)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, constants.ErrCodeNotFound, "Not found")
	})

	return &Server{router: r}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
