// Package testutil provides shared test helpers.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertTrue fails the test if the condition is false
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Fatal(msg)
	}
}

// AssertStringContains fails the test if s does not contain substr
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected %q to contain %q", s, substr)
	}
}

// GenerateRandomString returns n random bytes base64url-encoded
func GenerateRandomString(t *testing.T, n int) string {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("reading random bytes: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// AuthServer is a configurable fake authorization service for tests. Each
// endpoint handler may be nil, in which case the server responds 404.
type AuthServer struct {
	// TokenHandler serves POST /token
	TokenHandler http.HandlerFunc

	// UserInfoHandler serves GET /userinfo
	UserInfoHandler http.HandlerFunc

	// IntrospectHandler serves POST /introspect
	IntrospectHandler http.HandlerFunc

	// RevokeHandler serves POST /revoke
	RevokeHandler http.HandlerFunc

	// LogoutHandler serves POST /logout
	LogoutHandler http.HandlerFunc
}

// Start launches the fake server. The caller owns the returned server and
// must Close it.
func (a *AuthServer) Start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	register := func(pattern string, h http.HandlerFunc) {
		if h != nil {
			mux.HandleFunc(pattern, h)
		}
	}
	register("/token", a.TokenHandler)
	register("/userinfo", a.UserInfoHandler)
	register("/introspect", a.IntrospectHandler)
	register("/revoke", a.RevokeHandler)
	register("/logout", a.LogoutHandler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// WriteJSON writes v as a JSON response with the given status
func WriteJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

// TokenJSON builds a standard token endpoint response body
func TokenJSON(accessToken, refreshToken string, expiresIn int) map[string]any {
	return map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    expiresIn,
		"scope":         "openid profile email",
	}
}
