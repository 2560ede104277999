package sessions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store.Load when no record exists for the ID.
var ErrNotFound = errors.New("sessions: not found")

// Record is the persisted form of a session: a flat key-value bag with an
// identifier and an absolute expiry.
type Record struct {
	// ID is the opaque session identifier stored in the browser cookie
	ID string `json:"id"`

	// Values is the session's key-value bag
	Values map[string]any `json:"values"`

	// ExpiresAt is when the record becomes eligible for deletion
	ExpiresAt time.Time `json:"expires_at"`
}

// Store defines the interface for persisting session records.
// All methods accept context.Context for tracing and cancellation.
type Store interface {
	// Load retrieves a record by ID. Returns ErrNotFound when absent or expired.
	Load(ctx context.Context, id string) (*Record, error)

	// Save persists a record, honoring its ExpiresAt as the TTL
	Save(ctx context.Context, rec *Record) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
}

// Session is the per-request bag handed to middleware and route handlers.
// Mutations are in-memory until Save is called; Destroy removes the backing
// record and expires the cookie.
type Session interface {
	// ID returns the session identifier
	ID() string

	// Get returns the value stored under key
	Get(key string) (any, bool)

	// Set stores a value under key
	Set(key string, value any)

	// Delete removes a key
	Delete(key string)

	// Save persists the current state to the backing store
	Save(ctx context.Context) error

	// Destroy removes the backing record and invalidates the cookie
	Destroy(ctx context.Context) error
}

// Provider hands out the session for an incoming request. The blitzware
// Handler treats a nil provider or a provider error as a configuration fault,
// not as "unauthenticated".
type Provider interface {
	Session(w http.ResponseWriter, r *http.Request) (Session, error)
}

// Options configures the cookie-binding Manager. The zero value is usable.
type Options struct {
	// CookieName is the session cookie name. Default: "blitzware_session".
	CookieName string

	// TTL is the session lifetime. Default: 24 hours.
	TTL time.Duration

	// Path is the cookie path. Default: "/".
	Path string

	// Insecure drops the Secure cookie attribute. Only for local development.
	Insecure bool

	// SameSite is the cookie SameSite mode. Default: http.SameSiteLaxMode.
	// Lax is required for the OAuth callback redirect to carry the cookie.
	SameSite http.SameSite

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Manager binds session records to browser cookies. It implements Provider.
type Manager struct {
	store  Store
	opts   Options
	logger *slog.Logger
}

// NewManager creates a Manager over the given store
func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "blitzware_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, opts: opts, logger: logger}
}

// Session returns the session for the request, creating a fresh one (and
// setting its cookie) when the request carries no valid session. A store
// failure is returned as-is so callers can distinguish "no session yet" from
// "session infrastructure is broken".
func (m *Manager) Session(w http.ResponseWriter, r *http.Request) (Session, error) {
	if cookie, err := r.Cookie(m.opts.CookieName); err == nil && cookie.Value != "" {
		rec, err := m.store.Load(r.Context(), cookie.Value)
		if err == nil {
			return m.wrap(rec, w), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Cookie references a dead record: fall through and start over.
	}

	rec := &Record{
		ID:        uuid.NewString(),
		Values:    make(map[string]any),
		ExpiresAt: time.Now().Add(m.opts.TTL),
	}
	http.SetCookie(w, m.cookie(rec.ID, m.opts.TTL))
	return m.wrap(rec, w), nil
}

func (m *Manager) wrap(rec *Record, w http.ResponseWriter) *managedSession {
	if rec.Values == nil {
		rec.Values = make(map[string]any)
	}
	return &managedSession{rec: rec, manager: m, w: w}
}

func (m *Manager) cookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     m.opts.Path,
		MaxAge:   int(ttl / time.Second),
		Secure:   !m.opts.Insecure,
		HttpOnly: true,
		SameSite: m.opts.SameSite,
	}
}

// managedSession is the Manager's Session implementation
type managedSession struct {
	mu      sync.Mutex
	rec     *Record
	manager *Manager
	w       http.ResponseWriter
}

func (s *managedSession) ID() string {
	return s.rec.ID
}

func (s *managedSession) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rec.Values[key]
	return v, ok
}

func (s *managedSession) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Values[key] = value
}

func (s *managedSession) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rec.Values, key)
}

func (s *managedSession) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.ExpiresAt = time.Now().Add(s.manager.opts.TTL)
	return s.manager.store.Save(ctx, s.rec)
}

func (s *managedSession) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.manager.store.Delete(ctx, s.rec.ID); err != nil {
		return err
	}
	s.rec.Values = make(map[string]any)
	if s.w != nil {
		http.SetCookie(s.w, s.manager.cookie("", -1))
	}
	return nil
}
