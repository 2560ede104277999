package blitzware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/LanderDK/blitzware-go-sdk/internal/testutil"
	"github.com/LanderDK/blitzware-go-sdk/sessions"
)

// fakeSession is an in-memory sessions.Session that records whether Save or
// Destroy ran, so tests can assert on persistence behavior.
type fakeSession struct {
	mu        sync.Mutex
	id        string
	values    map[string]any
	saves     int
	saveErr   error
	destroyed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{id: "sess-1", values: make(map[string]any)}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeSession) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *fakeSession) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *fakeSession) Save(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return s.saveErr
}

func (s *fakeSession) Destroy(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
	s.values = make(map[string]any)
	return nil
}

func (s *fakeSession) has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// fakeProvider hands every request the same session
type fakeProvider struct {
	session sessions.Session
	err     error
}

func (p *fakeProvider) Session(http.ResponseWriter, *http.Request) (sessions.Session, error) {
	return p.session, p.err
}

func newTestHandler(t *testing.T, baseURL string, sess sessions.Session, mutate func(*Config)) *Handler {
	t.Helper()
	cfg := validConfig()
	cfg.BaseURL = baseURL
	if mutate != nil {
		mutate(cfg)
	}
	handler, err := NewHandler(cfg, &fakeProvider{session: sess})
	testutil.AssertNoError(t, err)
	return handler
}

// protectedProbe is a next handler recording whether it ran and what identity
// it saw on the context.
type protectedProbe struct {
	called bool
	user   *UserProfile
	token  string
}

func (p *protectedProbe) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.called = true
		p.user, _ = UserFromContext(r.Context())
		p.token, _ = AccessTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func doRequireAuth(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	probe := &protectedProbe{}
	h.RequireAuth(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestRequireAuthNoToken(t *testing.T) {
	sess := newFakeSession()
	handler := newTestHandler(t, "https://auth.example.com", sess, nil)

	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusFound)
	testutil.AssertEqual(t, rec.Header().Get("Location"), "/login")
}

func TestRequireAuthValidToken(t *testing.T) {
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"active": true})
		},
		UserInfoHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "user-1", "username": "lander"})
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-1")
	handler := newTestHandler(t, server.URL, sess, nil)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireAuth(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	testutil.AssertTrue(t, probe.called, "next handler must run")
	if probe.user == nil || probe.user.ID != "user-1" {
		t.Fatalf("user on context = %+v", probe.user)
	}
	if probe.token != "" {
		t.Error("access token must not be on the context by default")
	}
	if sess.saves == 0 {
		t.Error("refreshed profile must be persisted")
	}
}

func TestRequireAuthRefreshesExpiredToken(t *testing.T) {
	userCalls := 0
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"active": false})
		},
		TokenHandler: func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			testutil.AssertEqual(t, r.PostForm.Get("grant_type"), "refresh_token")
			testutil.AssertEqual(t, r.PostForm.Get("refresh_token"), "rt-1")
			testutil.WriteJSON(t, w, http.StatusOK, testutil.TokenJSON("at-fresh", "rt-fresh", 3600))
		},
		UserInfoHandler: func(w http.ResponseWriter, r *http.Request) {
			userCalls++
			testutil.AssertEqual(t, r.Header.Get("Authorization"), "Bearer at-fresh")
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "user-1", "username": "lander"})
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-stale")
	sess.Set("refreshToken", "rt-1")
	handler := newTestHandler(t, server.URL, sess, nil)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireAuth(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	testutil.AssertTrue(t, probe.called, "next handler must run after refresh")
	testutil.AssertEqual(t, userCalls, 1)

	at, _ := sess.Get("accessToken")
	rt, _ := sess.Get("refreshToken")
	testutil.AssertEqual(t, at.(string), "at-fresh")
	testutil.AssertEqual(t, rt.(string), "rt-fresh")
}

func TestRequireAuthRefreshRejected(t *testing.T) {
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"active": false})
		},
		TokenHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-stale")
	sess.Set("refreshToken", "rt-revoked")
	sess.Set("user", &UserProfile{ID: "user-1"})
	sess.Set("appData", "kept")
	handler := newTestHandler(t, server.URL, sess, nil)

	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusFound)
	testutil.AssertEqual(t, rec.Header().Get("Location"), "/login")

	testutil.AssertTrue(t, !sess.has("accessToken"), "access token must be cleared")
	testutil.AssertTrue(t, !sess.has("refreshToken"), "refresh token must be cleared")
	testutil.AssertTrue(t, !sess.has("user"), "user must be cleared")
	testutil.AssertTrue(t, sess.has("appData"), "application fields must survive")
}

func TestRequireAuthPostRefreshUserInfoFailure(t *testing.T) {
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"active": false})
		},
		TokenHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, testutil.TokenJSON("at-fresh", "rt-fresh", 3600))
		},
		UserInfoHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-stale")
	sess.Set("refreshToken", "rt-1")
	handler := newTestHandler(t, server.URL, sess, nil)

	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusInternalServerError)

	// Refreshed tokens were persisted; the session survives for retry
	at, _ := sess.Get("accessToken")
	testutil.AssertEqual(t, at.(string), "at-fresh")
	testutil.AssertTrue(t, sess.has("refreshToken"), "refresh token must survive")
}

func TestRequireAuthValidationNetworkFailureFallsBackToRefresh(t *testing.T) {
	tokenCalls := 0
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		TokenHandler: func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			testutil.WriteJSON(t, w, http.StatusOK, testutil.TokenJSON("at-fresh", "rt-fresh", 3600))
		},
		UserInfoHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "user-1", "username": "lander"})
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-1")
	sess.Set("refreshToken", "rt-1")
	handler := newTestHandler(t, server.URL, sess, nil)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireAuth(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	// A failed introspection round trip counts as a rejection: the refresh
	// path must run instead of surfacing the failure.
	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	testutil.AssertTrue(t, probe.called, "next handler must run after refresh")
	testutil.AssertEqual(t, tokenCalls, 1)

	at, _ := sess.Get("accessToken")
	testutil.AssertEqual(t, at.(string), "at-fresh")
}

func TestRequireAuthUnreachableServiceEndsSession(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()

	sess := newFakeSession()
	sess.Set("accessToken", "at-1")
	sess.Set("refreshToken", "rt-1")
	handler := newTestHandler(t, serverURL, sess, nil)

	// Validation and the refresh attempt both fail at the transport level;
	// the session is cleared and the user sent back to login.
	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusFound)
	testutil.AssertEqual(t, rec.Header().Get("Location"), "/login")
	testutil.AssertTrue(t, !sess.has("accessToken"), "auth state must be cleared")
	testutil.AssertTrue(t, !sess.has("refreshToken"), "refresh token must be cleared")
}

func TestRequireAuthDisabledRefresh(t *testing.T) {
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"active": false})
		},
		TokenHandler: func(w http.ResponseWriter, r *http.Request) {
			t.Error("token endpoint must not be called when auto refresh is disabled")
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-stale")
	sess.Set("refreshToken", "rt-1")
	handler := newTestHandler(t, server.URL, sess, func(c *Config) {
		c.DisableAutoRefresh = true
	})

	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusFound)
	testutil.AssertTrue(t, !sess.has("accessToken"), "auth state must be cleared")
}

func TestRequireAuthJSONRespondsUnauthorized(t *testing.T) {
	sess := newFakeSession()
	handler := newTestHandler(t, "https://auth.example.com", sess, nil)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireAuthJSON(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusUnauthorized)
	testutil.AssertTrue(t, !probe.called, "next handler must not run")
	testutil.AssertStringContains(t, rec.Body.String(), "error")
	testutil.AssertEqual(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestRequireAuthProviderFailure(t *testing.T) {
	cfg := validConfig()
	handler, err := NewHandler(cfg, &fakeProvider{err: errors.New("store down")})
	testutil.AssertNoError(t, err)

	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusInternalServerError)
	testutil.AssertStringContains(t, rec.Body.String(), "session_unavailable")
}

func TestRequireAuthNilProvider(t *testing.T) {
	handler, err := NewHandler(validConfig(), nil)
	testutil.AssertNoError(t, err)

	rec := doRequireAuth(handler, "/dashboard")
	testutil.AssertEqual(t, rec.Code, http.StatusInternalServerError)
}

func TestRequireAuthExposeAccessToken(t *testing.T) {
	auth := &testutil.AuthServer{
		IntrospectHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"active": true})
		},
		UserInfoHandler: func(w http.ResponseWriter, r *http.Request) {
			testutil.WriteJSON(t, w, http.StatusOK, map[string]any{"id": "user-1"})
		},
	}
	server := auth.Start(t)

	sess := newFakeSession()
	sess.Set("accessToken", "at-1")
	handler := newTestHandler(t, server.URL, sess, func(c *Config) {
		c.ExposeAccessToken = true
	})

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireAuth(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	testutil.AssertEqual(t, probe.token, "at-1")
}

func TestRequireSessionAttachesStoredUser(t *testing.T) {
	sess := newFakeSession()
	sess.Set("user", &UserProfile{ID: "user-1", Username: "lander"})
	// Unreachable base URL: session-only mode must never touch the network
	handler := newTestHandler(t, "https://auth.invalid", sess, nil)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireSession(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusOK)
	testutil.AssertTrue(t, probe.called, "next handler must run")
	if probe.user == nil || probe.user.ID != "user-1" {
		t.Fatalf("user on context = %+v", probe.user)
	}
}

func TestRequireSessionRedirectsWithoutUser(t *testing.T) {
	sess := newFakeSession()
	sess.Set("accessToken", "at-1") // a token alone is not a user record
	handler := newTestHandler(t, "https://auth.invalid", sess, nil)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireSession(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusFound)
	testutil.AssertEqual(t, rec.Header().Get("Location"), "/login")
	testutil.AssertTrue(t, !probe.called, "next handler must not run")
}

func TestRequireSessionProviderFailure(t *testing.T) {
	handler, err := NewHandler(validConfig(), &fakeProvider{err: errors.New("store down")})
	testutil.AssertNoError(t, err)

	probe := &protectedProbe{}
	rec := httptest.NewRecorder()
	handler.RequireSession(probe.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))

	testutil.AssertEqual(t, rec.Code, http.StatusInternalServerError)
	testutil.AssertStringContains(t, rec.Body.String(), "session_unavailable")
}
