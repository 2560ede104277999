package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/LanderDK/blitzware-go-sdk/sessions"
)

const (
	// DefaultKeyPrefix is the default prefix for all session keys
	DefaultKeyPrefix = "blitzware:session:"

	// connectionVerifyTimeout bounds the initial PING
	connectionVerifyTimeout = 5 * time.Second
)

// Config holds configuration for the Valkey session store
type Config struct {
	// Address is the Valkey server address (required), e.g. "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "blitzware:session:")
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger
}

// Store is a Valkey-backed implementation of sessions.Store
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger
}

var _ sessions.Store = (*Store)(nil)

// New creates a Valkey-backed session store and verifies the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey session store",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{client: client, prefix: prefix, logger: logger}, nil
}

// Load retrieves a session record by ID
func (s *Store) Load(ctx context.Context, id string) (*sessions.Record, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(id)).Build()).ToString()
	if err != nil {
		if valkeygo.IsValkeyNil(err) {
			return nil, sessions.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var rec sessions.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

// Save persists a session record with a TTL derived from its expiry
func (s *Store) Save(ctx context.Context, rec *sessions.Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	cmd := s.client.B().Set().Key(s.key(rec.ID)).Value(string(data)).Ex(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session record
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(id)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the Valkey client connection
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) key(id string) string {
	return s.prefix + id
}
