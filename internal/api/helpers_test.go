package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"huddle/internal/account"
	"huddle/internal/auth"
	"huddle/internal/db"
	"huddle/internal/ratelimit"
	"huddle/internal/security"
)

const (
	testSecret    = "0123456789abcdef0123456789abcdef"
	testPassword  = "Sturdy9Horse"
	testUserAgent = "Mozilla/5.0 (X11; Linux x86_64) HuddleTest/1.0"
)

type testServerOptions struct {
	production      bool
	allowedOrigins  []string
	trustedProxies  []string
	blockSuspicious bool
	globalPerMinute int
	authPolicy      ratelimit.Policy
	apiPolicy       ratelimit.Policy
}

func generousPolicy(name string) ratelimit.Policy {
	return ratelimit.Policy{Name: name, Window: time.Minute, Max: 1000}
}

func newTestServer(t *testing.T, opts testServerOptions) *Server {
	t.Helper()

	database := openTestDB(t)
	issuer := auth.NewSessionIssuer(testSecret, time.Hour, opts.production, "huddle.example")
	accounts := account.NewService(
		db.NewUserRepository(database),
		db.NewSessionRepository(database),
		db.NewPasswordResetRepository(database),
		issuer,
		nil,
		time.Hour,
	)

	ips, err := NewClientIPResolver(opts.trustedProxies)
	if err != nil {
		t.Fatalf("NewClientIPResolver() error = %v", err)
	}

	if opts.authPolicy.Max == 0 {
		opts.authPolicy = generousPolicy("auth")
	}
	if opts.apiPolicy.Max == 0 {
		opts.apiPolicy = generousPolicy("api")
	}

	return NewServer(ServerOptions{
		Accounts: accounts,
		Issuer:   issuer,
		Database: database,
		Limiters: Limiters{
			Auth:          ratelimit.NewLimiter(opts.authPolicy),
			API:           ratelimit.NewLimiter(opts.apiPolicy),
			ProfileUpdate: ratelimit.NewLimiter(generousPolicy("profile_update")),
			PasswordReset: ratelimit.NewLimiter(generousPolicy("password_reset")),
		},
		OriginGuard:             security.NewOriginGuard(opts.production, opts.allowedOrigins),
		IPResolver:              ips,
		BlockSuspicious:         opts.blockSuspicious,
		GlobalRequestsPerMinute: opts.globalPerMinute,
	})
}

func openTestDB(t *testing.T) *db.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", testUserAgent)
	for _, m := range mutate {
		m(req)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func withOrigin(origin string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Origin", origin)
	}
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(c)
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withRemoteAddr(addr string) func(*http.Request) {
	return func(r *http.Request) {
		r.RemoteAddr = addr
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Success {
		t.Fatalf("success = true in error response, body=%q", rr.Body.String())
	}
	return resp
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if !resp.Success {
		t.Fatalf("success = false, body=%q", rr.Body.String())
	}
	return resp.Data
}

func registerUser(t *testing.T, handler http.Handler, email, displayName string) UserResponse {
	t.Helper()

	body := `{"email":"` + email + `","displayName":"` + displayName + `","password":"` + testPassword + `","confirmPassword":"` + testPassword + `"}`
	rr := doRequest(t, handler, http.MethodPost, "/api/auth/register", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d, body=%q", rr.Code, http.StatusCreated, rr.Body.String())
	}
	return decodeData[UserResponse](t, rr)
}

func signIn(t *testing.T, handler http.Handler, email, password string) (*http.Cookie, SessionResponse) {
	t.Helper()

	rr := doRequest(t, handler, http.MethodPost, "/api/auth/signin", `{"email":"`+email+`","password":"`+password+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("signin status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c, decodeData[SessionResponse](t, rr)
		}
	}
	t.Fatalf("signin set no %s cookie", auth.SessionCookieName)
	return nil, SessionResponse{}
}
