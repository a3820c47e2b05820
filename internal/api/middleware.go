package api

import (
	"context"
	"net/http"
	"strings"

	"huddle/internal/auth"
)

type contextKey string

const claimsKey contextKey = "sessionClaims"

type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.SessionClaims, error)
}

type AuthMiddleware struct {
	sessions   SessionValidator
	cookieName string
}

func NewAuthMiddleware(sessions SessionValidator, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, cookieName: cookieName}
}

// RequireAuth accepts the session cookie or, for API clients, a bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := m.sessionToken(r)
		if !ok {
			unauthorized(w, "Authentication required")
			return
		}

		claims, err := m.sessions.ValidateSession(r.Context(), token)
		if err != nil {
			writeAccountError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) sessionToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return "", false
		}
		return strings.TrimSpace(token), true
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func GetClaims(r *http.Request) *auth.SessionClaims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.SessionClaims); ok {
		return claims
	}
	return nil
}

func GetUserID(r *http.Request) string {
	if claims := GetClaims(r); claims != nil {
		return claims.UserID()
	}
	return ""
}
