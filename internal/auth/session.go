package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"huddle/internal/models"
)

const (
	SessionCookieName       = "next-auth.session-token"
	SecureSessionCookieName = "__Secure-next-auth.session-token"
	DefaultSessionTTL       = 30 * 24 * time.Hour
	sessionIssuer           = "huddle"
)

var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session token expired")
)

// SessionClaims is a snapshot of the user's display fields taken at sign-in
// or explicit refresh. Only the subject is authoritative for authorization.
type SessionClaims struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Status    string `json:"status"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) UserID() string {
	return c.Subject
}

func (c *SessionClaims) SessionID() string {
	return c.ID
}

type SessionIssuer struct {
	secret       []byte
	ttl          time.Duration
	production   bool
	cookieDomain string
}

func NewSessionIssuer(secret string, ttl time.Duration, production bool, cookieDomain string) *SessionIssuer {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{
		secret:       []byte(secret),
		ttl:          ttl,
		production:   production,
		cookieDomain: cookieDomain,
	}
}

// ExpiresAt is the absolute expiry for a session starting now. Sessions are
// never extended.
func (s *SessionIssuer) ExpiresAt() time.Time {
	return time.Now().Add(s.ttl)
}

// Issue signs a token for user bound to sessionID.
func (s *SessionIssuer) Issue(user *models.User, sessionID string, expiresAt time.Time) (string, *SessionClaims, error) {
	claims := &SessionClaims{
		Email:     user.Email,
		Name:      user.DisplayName,
		Username:  user.Username,
		AvatarURL: user.GetAvatarURL(),
		Bio:       user.Bio,
		Status:    string(user.Status),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    sessionIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing session token: %w", err)
	}
	return signed, claims, nil
}

func (s *SessionIssuer) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

func (s *SessionIssuer) CookieName() string {
	if s.production {
		return SecureSessionCookieName
	}
	return SessionCookieName
}

// Cookie carries the session token. Secure and Domain are only set in
// production so local development works over plain http.
func (s *SessionIssuer) Cookie(token string, expiresAt time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     s.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if s.production {
		cookie.Secure = true
		cookie.Domain = s.cookieDomain
	}
	return cookie
}

func (s *SessionIssuer) ClearCookie() *http.Cookie {
	cookie := s.Cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	return cookie
}
