package blitzware

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/LanderDK/blitzware-go-sdk/instrumentation"
)

// DefaultBaseURL is the BlitzWare authorization service endpoint used when
// Config.BaseURL is not set.
const DefaultBaseURL = "https://auth.blitzware.app/api/auth"

// defaultHTTPTimeout bounds every protocol round trip when no custom
// HTTP client is supplied.
const defaultHTTPTimeout = 30 * time.Second

// Config holds the SDK configuration. It is resolved once at construction and
// immutable afterwards; a Client or Handler never mutates it.
type Config struct {
	// ClientID is the confidential client's identifier (required)
	ClientID string

	// ClientSecret is the confidential client's secret (required, never logged)
	ClientSecret string

	// RedirectURI is the absolute callback URL registered with the
	// authorization service (required)
	RedirectURI string

	// BaseURL is the authorization service base URL.
	// Default: DefaultBaseURL.
	BaseURL string

	// Scopes are the scopes requested during authorization.
	// Default: "openid", "profile", "email".
	Scopes []string

	// AuthorizationParams are extra query parameters merged into every
	// authorization URL built by ServeLogin (e.g. "prompt", "audience").
	AuthorizationParams map[string]string

	// SessionKeys are the session field names used for auth state
	SessionKeys SessionKeys

	// LoginURL is where unauthenticated browser requests are redirected.
	// Default: "/login".
	LoginURL string

	// SuccessRedirect is where the callback handler sends the user after a
	// completed login. Default: "/".
	SuccessRedirect string

	// FailureRedirect is where the callback handler sends the user after a
	// failed login, with error_code=<code> appended. Default: LoginURL.
	FailureRedirect string

	// LogoutRedirect is where the logout handler sends the user.
	// Default: "/".
	LogoutRedirect string

	// BrowserLogout routes the logout through the authorization service in
	// the user's browser, so the service's own session cookies are included.
	// Required when the service tracks its own browser session and a
	// server-to-server revocation would leave the user logged in remotely.
	BrowserLogout bool

	// DisableAutoRefresh turns off the middleware's refresh-on-failure path:
	// any validation failure then clears the session and redirects to login.
	DisableAutoRefresh bool

	// DisableUserContext stops the middleware from attaching the validated
	// user profile to the request context.
	DisableUserContext bool

	// ExposeAccessToken additionally attaches the raw access token to the
	// request context for handlers that call the service themselves.
	ExposeAccessToken bool

	// LoginRateLimit bounds login initiations per client IP. Zero disables.
	LoginRateLimit RateLimitConfig

	// Logger for structured logging (optional, uses slog.Default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for protocol round trips.
	// Default: a client with a 30-second timeout.
	HTTPClient *http.Client

	// Instrumentation enables OpenTelemetry metrics and tracing (optional)
	Instrumentation *instrumentation.Instrumentation
}

// SessionKeys names the session fields the SDK reads and writes. Zero-value
// fields fall back to the defaults.
type SessionKeys struct {
	// AccessToken is the session key for the access token. Default: "accessToken".
	AccessToken string

	// RefreshToken is the session key for the refresh token. Default: "refreshToken".
	RefreshToken string

	// User is the session key for the stored user profile. Default: "user".
	User string

	// State is the session key for the one-time CSRF state. Default: "oauthState".
	State string

	// CodeVerifier is the session key for the one-time PKCE verifier.
	// Default: "codeVerifier".
	CodeVerifier string
}

// RateLimitConfig holds token-bucket rate limiting configuration
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int
}

// withDefaults returns the keys with defaults applied
func (k SessionKeys) withDefaults() SessionKeys {
	if k.AccessToken == "" {
		k.AccessToken = "accessToken"
	}
	if k.RefreshToken == "" {
		k.RefreshToken = "refreshToken"
	}
	if k.User == "" {
		k.User = "user"
	}
	if k.State == "" {
		k.State = "oauthState"
	}
	if k.CodeVerifier == "" {
		k.CodeVerifier = "codeVerifier"
	}
	return k
}

// Validate checks the required fields and URL shapes. Failures are
// construction-time errors with structured codes; they are never deferred to
// the first protocol call.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID("client ID is required")
	}
	if c.ClientSecret == "" {
		return ErrMissingClientSecret("client secret is required")
	}
	if c.RedirectURI == "" {
		return ErrMissingRedirectURI("redirect URI is required")
	}
	if u, err := url.Parse(c.RedirectURI); err != nil || !u.IsAbs() {
		return ErrMissingRedirectURI("redirect URI must be an absolute URL")
	}
	return nil
}

// resolved returns a defensive copy with every default applied
func (c *Config) resolved() *Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if len(out.Scopes) == 0 {
		out.Scopes = []string{"openid", "profile", "email"}
	}
	out.SessionKeys = out.SessionKeys.withDefaults()
	if out.LoginURL == "" {
		out.LoginURL = "/login"
	}
	if out.SuccessRedirect == "" {
		out.SuccessRedirect = "/"
	}
	if out.FailureRedirect == "" {
		out.FailureRedirect = out.LoginURL
	}
	if out.LogoutRedirect == "" {
		out.LogoutRedirect = "/"
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &out
}
