package blitzware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/LanderDK/blitzware-go-sdk/instrumentation"
)

// endpoints holds the authorization service URLs derived from the base URL
type endpoints struct {
	authorize  string
	token      string
	userInfo   string
	introspect string
	revoke     string
	logout     string
}

// Client is the stateless protocol client. Its only state is the immutable
// resolved configuration, so a single instance is safe for concurrent use by
// any number of in-flight requests.
type Client struct {
	cfg        *Config
	oauth      *oauth2.Config
	endpoints  endpoints
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewClient creates a protocol client. Configuration is validated here:
// a missing client ID, client secret, or redirect URI fails immediately
// with the corresponding structured error.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolved := cfg.resolved()

	base := strings.TrimRight(resolved.BaseURL, "/")
	eps := endpoints{
		authorize:  base + "/authorize",
		token:      base + "/token",
		userInfo:   base + "/userinfo",
		introspect: base + "/introspect",
		revoke:     base + "/revoke",
		logout:     base + "/logout",
	}

	var metrics *instrumentation.Metrics
	if resolved.Instrumentation != nil {
		metrics = resolved.Instrumentation.Metrics()
	}

	return &Client{
		cfg: resolved,
		oauth: &oauth2.Config{
			ClientID:     resolved.ClientID,
			ClientSecret: resolved.ClientSecret,
			RedirectURL:  resolved.RedirectURI,
			Scopes:       resolved.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   eps.authorize,
				TokenURL:  eps.token,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		endpoints:  eps,
		httpClient: resolved.HTTPClient,
		logger:     resolved.Logger,
		metrics:    metrics,
	}, nil
}

// Config returns the resolved configuration. Callers must not mutate it.
func (c *Client) Config() *Config {
	return c.cfg
}

// BuildAuthorizationURL constructs the authorization endpoint URL for a new
// login attempt. State and PKCE verifier are generated when not supplied; the
// caller must persist both (State for the callback comparison, CodeVerifier
// for the code exchange). Pure construction, no network.
func (c *Client) BuildAuthorizationURL(opts *AuthorizationURLOptions) *AuthorizationRequest {
	if opts == nil {
		opts = &AuthorizationURLOptions{}
	}

	state := opts.State
	if state == "" {
		state = GenerateState()
	}
	verifier := opts.CodeVerifier
	if verifier == "" {
		verifier = GenerateCodeVerifier()
	}

	authOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", DeriveCodeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", CodeChallengeMethodS256),
	}
	for k, v := range opts.ExtraParams {
		authOpts = append(authOpts, oauth2.SetAuthURLParam(k, v))
	}

	return &AuthorizationRequest{
		URL:          c.oauth.AuthCodeURL(state, authOpts...),
		State:        state,
		CodeVerifier: verifier,
	}
}

// ExchangeCode exchanges an authorization code for tokens. An empty code
// fails with missing_authorization_code; a remote rejection with
// token_exchange_failed; a transport failure with network_error.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	if code == "" {
		return nil, ErrMissingAuthorizationCode("authorization code is empty")
	}

	started := time.Now()
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code, opts...)
	c.metrics.RecordRoundTrip(ctx, "exchange_code", err, started)
	if err != nil {
		return nil, wrapTokenEndpointError(err, ErrorCodeTokenExchangeFailed, "code exchange rejected")
	}
	return tokenResponseFromOAuth2(token), nil
}

// HandleCallback validates raw callback query parameters and exchanges the
// code. An error/error_description pair from the authorization service is
// surfaced (as token_exchange_failed with details), never swallowed. A
// missing code is missing_authorization_code. The state comparison fails
// closed: an empty expectedState or received state is invalid_state, as is an
// empty codeVerifier, because both mean the login attempt's one-time session
// state is gone.
func (c *Client) HandleCallback(ctx context.Context, params url.Values, expectedState, codeVerifier string) (*TokenResponse, error) {
	if remote := params.Get("error"); remote != "" {
		return nil, ErrTokenExchangeFailed("authorization service returned an error").WithDetails(map[string]any{
			"error":             remote,
			"error_description": params.Get("error_description"),
		})
	}

	code := params.Get("code")
	if code == "" {
		return nil, ErrMissingAuthorizationCode("callback carried no authorization code")
	}

	received := params.Get("state")
	if expectedState == "" || received == "" ||
		subtle.ConstantTimeCompare([]byte(expectedState), []byte(received)) != 1 {
		return nil, ErrInvalidState("callback state does not match the expected state")
	}
	if codeVerifier == "" {
		return nil, ErrInvalidState("code verifier missing for this login attempt")
	}

	return c.ExchangeCode(ctx, code, codeVerifier)
}

// RefreshToken obtains a new access token (and possibly a new refresh token)
// from a refresh token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	started := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	source := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	c.metrics.RecordRoundTrip(ctx, "refresh_token", err, started)
	if err != nil {
		return nil, wrapTokenEndpointError(err, ErrorCodeTokenRefreshFailed, "token refresh rejected")
	}
	return tokenResponseFromOAuth2(token), nil
}

// GetUserInfo fetches the user profile for an access token
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (*UserProfile, error) {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.userInfo, nil)
	if err != nil {
		return nil, ErrNetworkError(fmt.Sprintf("creating userinfo request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	c.metrics.RecordRoundTrip(ctx, "userinfo", err, started)
	if err != nil {
		return nil, ErrNetworkError(fmt.Sprintf("userinfo request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrUserInfoFailed(fmt.Sprintf("userinfo request failed with status %d", resp.StatusCode))
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, ErrUserInfoFailed(fmt.Sprintf("decoding userinfo response: %v", err))
	}
	return &profile, nil
}

// IntrospectToken asks the authorization service whether a token is active
// (RFC 7662). An inactive token is a valid result, not an error; only
// transport-level failures error out.
func (c *Client) IntrospectToken(ctx context.Context, token, tokenTypeHint string) (*IntrospectionResult, error) {
	started := time.Now()

	form := url.Values{}
	form.Set("token", token)
	if tokenTypeHint != "" {
		form.Set("token_type_hint", tokenTypeHint)
	}

	var result IntrospectionResult
	err := c.postForm(ctx, c.endpoints.introspect, form, &result)
	c.metrics.RecordRoundTrip(ctx, "introspect", err, started)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateTokenAndGetUser introspects the token and, when active, fetches the
// user profile. An inactive token fails with token_inactive, which the
// middleware treats exactly like an expired token (refresh-eligible).
func (c *Client) ValidateTokenAndGetUser(ctx context.Context, accessToken string) (*UserProfile, error) {
	result, err := c.IntrospectToken(ctx, accessToken, "access_token")
	if err != nil {
		return nil, err
	}
	if !result.Active {
		return nil, ErrTokenInactive("access token is not active")
	}
	return c.GetUserInfo(ctx, accessToken)
}

// RevokeToken revokes a token at the authorization service (RFC 7009).
// Callers performing a logout should treat a failure here as non-fatal.
func (c *Client) RevokeToken(ctx context.Context, token, tokenTypeHint string) error {
	started := time.Now()

	form := url.Values{}
	form.Set("token", token)
	if tokenTypeHint != "" {
		form.Set("token_type_hint", tokenTypeHint)
	}

	err := c.postForm(ctx, c.endpoints.revoke, form, nil)
	c.metrics.RecordRoundTrip(ctx, "revoke", err, started)
	return err
}

// Logout notifies the authorization service that the client's session ended.
// Best-effort: callers should not fail a local logout on a remote error.
func (c *Client) Logout(ctx context.Context) error {
	started := time.Now()

	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)

	err := c.postForm(ctx, c.endpoints.logout, form, nil)
	c.metrics.RecordRoundTrip(ctx, "logout", err, started)
	return err
}

// BrowserLogoutURL builds the logout endpoint URL for the browser-delivered
// strategy: redirecting the user's browser here includes the authorization
// service's own session cookies, which a server-to-server call cannot carry.
// The service redirects back to returnTo when done.
func (c *Client) BrowserLogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	if returnTo != "" {
		q.Set("redirect_uri", returnTo)
	}
	return c.endpoints.logout + "?" + q.Encode()
}

// postForm POSTs a form with client credentials to an authorization service
// endpoint and optionally decodes the JSON response. Any transport failure or
// non-2xx response is a network_error; the protocol-level failure codes are
// assigned by the callers that know which operation ran.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return ErrNetworkError(fmt.Sprintf("creating request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrNetworkError(fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little of the body for diagnostics without trusting it
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ErrNetworkError(fmt.Sprintf("request failed with status %d", resp.StatusCode)).WithDetails(map[string]any{
			"status": resp.StatusCode,
			"body":   string(body),
		})
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return ErrNetworkError(fmt.Sprintf("decoding response: %v", err))
		}
	}
	return nil
}

// wrapTokenEndpointError converts an oauth2 token endpoint error into the
// structured taxonomy: a remote rejection keeps the operation's code with the
// service's error preserved in Details, anything else is a network_error.
func wrapTokenEndpointError(err error, code, desc string) *Error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		status := http.StatusUnauthorized
		e := NewError(code, desc, status)
		details := map[string]any{}
		if retrieve.ErrorCode != "" {
			details["error"] = retrieve.ErrorCode
		}
		if retrieve.ErrorDescription != "" {
			details["error_description"] = retrieve.ErrorDescription
		}
		if retrieve.Response != nil {
			details["status"] = retrieve.Response.StatusCode
		}
		if len(details) > 0 {
			e.Details = details
		}
		return e
	}
	return ErrNetworkError(fmt.Sprintf("%s: %v", desc, err))
}

// tokenResponseFromOAuth2 flattens an oauth2.Token into the wire-shaped
// TokenResponse the rest of the SDK works with
func tokenResponseFromOAuth2(token *oauth2.Token) *TokenResponse {
	out := &TokenResponse{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		if secs := int64(time.Until(token.Expiry).Seconds()); secs > 0 {
			out.ExpiresIn = secs
		}
	}
	if scope, ok := token.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}
