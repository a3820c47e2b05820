package api

import (
	"net/http"
	"testing"

	"huddle/internal/constants"
)

func TestGetProfileOmitsPasswordHash(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice")
	cookie, _ := signIn(t, srv, "alice@example.com", testPassword)

	rr := doRequest(t, srv, http.MethodGet, "/api/user/profile", "", withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	profile := decodeData[map[string]any](t, rr)
	for _, key := range []string{"passwordHash", "password_hash", "PasswordHash"} {
		if _, ok := profile[key]; ok {
			t.Fatalf("profile contains %q", key)
		}
	}
	if profile["status"] != "ONLINE" {
		t.Fatalf("status = %v, want ONLINE", profile["status"])
	}
}

func TestUpdateProfileAllowsUnchangedUsername(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice")
	cookie, _ := signIn(t, srv, "alice@example.com", testPassword)

	rr := doRequest(t, srv, http.MethodPatch, "/api/user/profile", `{"username":"alice","status":"IDLE"}`, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	user := decodeData[UserResponse](t, rr)
	if user.Username != "alice" {
		t.Fatalf("username = %q, want %q", user.Username, "alice")
	}
	if user.Status != "IDLE" {
		t.Fatalf("status = %q, want %q", user.Status, "IDLE")
	}
}

func TestUpdateProfileRejections(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice")
	registerUser(t, srv, "bob@example.com", "Bob")
	cookie, _ := signIn(t, srv, "alice@example.com", testPassword)

	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{name: "username_taken", body: `{"username":"bob"}`, code: constants.ErrCodeConflict, field: "username"},
		{name: "display_name_taken", body: `{"displayName":"bob"}`, code: constants.ErrCodeConflict, field: "displayName"},
		{name: "display_name_blank", body: `{"displayName":""}`, code: constants.ErrCodeValidation, field: "displayName"},
		{name: "bad_status", body: `{"status":"AWAY"}`, code: constants.ErrCodeValidation, field: "status"},
		{name: "bad_username_chars", body: `{"username":"al ice"}`, code: constants.ErrCodeValidation, field: "username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPatch, "/api/user/profile", tt.body, withCookie(cookie))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
			}
			resp := decodeError(t, rr)
			if resp.Code != tt.code {
				t.Fatalf("code = %q, want %q", resp.Code, tt.code)
			}
			if resp.Field != tt.field {
				t.Fatalf("field = %q, want %q", resp.Field, tt.field)
			}
		})
	}
}

func TestUpdateProfileCollapsesDisplayNameWhitespace(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice Cooper")
	registerUser(t, srv, "bob@example.com", "Bob")
	cookie, _ := signIn(t, srv, "bob@example.com", testPassword)

	rr := doRequest(t, srv, http.MethodPatch, "/api/user/profile", `{"displayName":"alice   cooper"}`, withCookie(cookie))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
	if resp := decodeError(t, rr); resp.Code != constants.ErrCodeConflict || resp.Field != "displayName" {
		t.Fatalf("error = %+v, want CONFLICT on displayName", resp)
	}

	rr = doRequest(t, srv, http.MethodPatch, "/api/user/profile", `{"displayName":"  Bob \t Marley "}`, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if user := decodeData[UserResponse](t, rr); user.DisplayName != "Bob Marley" {
		t.Fatalf("display name = %q, want %q", user.DisplayName, "Bob Marley")
	}
}

func TestUpdateProfileSanitizesBio(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice")
	cookie, _ := signIn(t, srv, "alice@example.com", testPassword)

	rr := doRequest(t, srv, http.MethodPatch, "/api/user/profile", `{"bio":"hi <script>alert(1)</script><i>there</i>"}`, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if user := decodeData[UserResponse](t, rr); user.Bio != "hi there" {
		t.Fatalf("bio = %q, want %q", user.Bio, "hi there")
	}
}

func TestDeactivateAccount(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice")
	cookie, _ := signIn(t, srv, "alice@example.com", testPassword)

	rr := doRequest(t, srv, http.MethodDelete, "/api/user/profile", `{"password":"Wrong9Horse"}`, withCookie(cookie))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("wrong password status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}

	rr = doRequest(t, srv, http.MethodDelete, "/api/user/profile", `{"password":"`+testPassword+`"}`, withCookie(cookie))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	rr = doRequest(t, srv, http.MethodGet, "/api/user/profile", "", withCookie(cookie))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("profile after deactivation status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	deactivated := doRequest(t, srv, http.MethodPost, "/api/auth/signin", `{"email":"alice@example.com","password":"`+testPassword+`"}`)
	unknown := doRequest(t, srv, http.MethodPost, "/api/auth/signin", `{"email":"nobody@example.com","password":"`+testPassword+`"}`)
	if deactivated.Code != http.StatusUnauthorized {
		t.Fatalf("signin after deactivation status = %d, want %d", deactivated.Code, http.StatusUnauthorized)
	}
	if deactivated.Body.String() != unknown.Body.String() {
		t.Fatalf("deactivated sign-in differs from unknown account:\n%s\n%s", deactivated.Body.String(), unknown.Body.String())
	}
}

func TestChangePassword(t *testing.T) {
	srv := newTestServer(t, testServerOptions{})
	registerUser(t, srv, "alice@example.com", "Alice")
	current, _ := signIn(t, srv, "alice@example.com", testPassword)
	other, _ := signIn(t, srv, "alice@example.com", testPassword)

	rr := doRequest(t, srv, http.MethodPatch, "/api/user/password", `{"newPassword":"weak"}`, withCookie(current))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("weak password status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, rr); resp.Code != constants.ErrCodeWeakPassword {
		t.Fatalf("code = %q, want %q", resp.Code, constants.ErrCodeWeakPassword)
	}

	rr = doRequest(t, srv, http.MethodPatch, "/api/user/password", `{"newPassword":"Fresh7Meadow"}`, withCookie(current))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	if rr := doRequest(t, srv, http.MethodGet, "/api/auth/session", "", withCookie(current)); rr.Code != http.StatusOK {
		t.Fatalf("current session status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr := doRequest(t, srv, http.MethodGet, "/api/auth/session", "", withCookie(other)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("other session status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	signIn(t, srv, "alice@example.com", "Fresh7Meadow")
}
