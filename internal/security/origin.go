// Package security holds the request-admission heuristics that sit in front
// of the account endpoints: origin checks, response hardening headers and
// suspicious-request detection.
package security

import (
	"net/http"
	"strings"
)

var (
	CORSAllowedMethods = []string{"GET", "OPTIONS", "PATCH", "DELETE", "POST", "PUT"}
	CORSAllowedHeaders = []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"}
)

const ContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-eval' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data: https:; " +
	"font-src 'self' data:; " +
	"connect-src 'self' ws: wss:; " +
	"frame-ancestors 'none'"

const PermissionsPolicy = "camera=(), microphone=(), geolocation=()"

// OriginGuard validates the Origin header of state-changing requests.
type OriginGuard struct {
	production bool
	allowed    map[string]struct{}
}

func NewOriginGuard(production bool, allowedOrigins []string) *OriginGuard {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return &OriginGuard{production: production, allowed: allowed}
}

// Validate reports whether r may proceed. Outside production every origin is
// accepted. In production the Origin header must be present and match an
// allow-list entry exactly.
func (g *OriginGuard) Validate(r *http.Request) bool {
	if !g.production {
		return true
	}
	return g.IsAllowed(r.Header.Get("Origin"))
}

func (g *OriginGuard) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := g.allowed[origin]
	return ok
}

// ApplyCORSHeaders echoes the request origin back when it is allowed (any
// origin outside production).
func (g *OriginGuard) ApplyCORSHeaders(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Add("Vary", "Origin")

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if g.production && !g.IsAllowed(origin) {
		return
	}

	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", strings.Join(CORSAllowedMethods, ", "))
	h.Set("Access-Control-Allow-Headers", strings.Join(CORSAllowedHeaders, ", "))
	h.Set("Access-Control-Allow-Credentials", "true")
}

// ApplySecurityHeaders sets the fixed hardening headers sent with every
// response.
func ApplySecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Content-Security-Policy", ContentSecurityPolicy)
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", PermissionsPolicy)
}
