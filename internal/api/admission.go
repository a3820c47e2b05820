package api

import (
	"log/slog"
	"net/http"

	"huddle/internal/constants"
	"huddle/internal/security"
)

// corsMiddleware sets CORS headers on every response and answers preflight
// requests directly.
func corsMiddleware(guard *security.OriginGuard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guard.ApplyCORSHeaders(w, r)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originMiddleware(guard *security.OriginGuard, ips *ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !guard.Validate(r) {
				slog.Warn("origin rejected",
					"component", "security",
					"origin", r.Header.Get("Origin"),
					"path", r.URL.Path,
					"ip", ips.Resolve(r),
				)
				forbidden(w, constants.ErrCodeOriginNotAllowed, "Origin not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// suspiciousActivityMiddleware logs flagged requests and only rejects them
// when block is set.
func suspiciousActivityMiddleware(block bool, ips *ClientIPResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			report := security.Detect(r)
			if report.Suspicious {
				slog.Warn("suspicious request",
					"component", "security",
					"reasons", report.Reasons,
					"path", r.URL.Path,
					"ip", ips.Resolve(r),
					"user_agent", r.UserAgent(),
				)
				if block {
					writeFieldError(w, http.StatusBadRequest, constants.ErrCodeSuspiciousRequest, "", "Request rejected", report.Reasons)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		security.ApplySecurityHeaders(w)
		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
