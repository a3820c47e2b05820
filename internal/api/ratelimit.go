package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"huddle/internal/constants"
	"huddle/internal/ratelimit"
)

// RateLimitMiddleware admits requests against limiter's policy and reports
// the budget in X-RateLimit-* headers. The key is the signed-in user, else
// the client IP, combined with the request path.
func RateLimitMiddleware(limiter *ratelimit.Limiter, ips *ClientIPResolver) func(http.Handler) http.Handler {
	policy := limiter.Policy()
	refunds := policy.SkipSuccessfulRequests || policy.SkipFailedRequests

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r, ips)
			result := limiter.Check(key)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := result.RetryAfter(time.Now())
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				slog.Warn("rate limit exceeded",
					"component", "ratelimit",
					"policy", policy.Name,
					"key", key,
				)
				writeFieldError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "",
					"Too many requests, please try again later",
					map[string]int{"retryAfter": retryAfter},
				)
				return
			}

			if !refunds {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if policy.ShouldRefund(ww.Status()) {
				limiter.Refund(key, result.ResetAt)
			}
		})
	}
}

func rateLimitKey(r *http.Request, ips *ClientIPResolver) string {
	identity := GetUserID(r)
	if identity == "" {
		identity = ips.Resolve(r)
	}
	return identity + ":" + r.URL.Path
}

// floodGuard caps total requests per client IP across the whole router,
// independent of the per-route policies.
func floodGuard(requestsPerMinute int, ips *ClientIPResolver) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return ips.Resolve(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests, please try again later")
		}),
	)
}
