package blitzware

// TokenResponse represents the authorization service's token endpoint response
type TokenResponse struct {
	// AccessToken is the opaque bearer token
	AccessToken string `json:"access_token"`

	// TokenType is the type of token (always "Bearer")
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// Scope is the space-delimited scope of the access token
	Scope string `json:"scope,omitempty"`

	// RefreshToken is the refresh token. Absent when the authorization
	// service does not issue one for this grant.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// IntrospectionResult represents an RFC 7662 token introspection response.
// Active is the authoritative validity signal; an inactive token is a valid
// result, not an error.
type IntrospectionResult struct {
	// Active reports whether the token is currently valid
	Active bool `json:"active"`

	// Scope is the space-delimited scope of the token
	Scope string `json:"scope,omitempty"`

	// ClientID is the client the token was issued to
	ClientID string `json:"client_id,omitempty"`

	// Username is the human-readable subject identifier
	Username string `json:"username,omitempty"`

	// TokenType is the type of the introspected token
	TokenType string `json:"token_type,omitempty"`

	// Exp is the expiration time as a Unix timestamp
	Exp int64 `json:"exp,omitempty"`

	// Sub is the subject of the token
	Sub string `json:"sub,omitempty"`
}

// UserProfile represents user information from the authorization service.
// It is read-only: profiles are never mutated locally, only replaced by a
// fresh copy from the user-info endpoint.
type UserProfile struct {
	// ID is the unique user identifier
	ID string `json:"id"`

	// Username is the user's login name
	Username string `json:"username"`

	// Email is the user's email address (optional)
	Email string `json:"email,omitempty"`

	// Roles is the set of role names assigned to the user (optional)
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the profile carries the given role
func (p *UserProfile) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthorizationRequest is the result of building an authorization URL. State
// and CodeVerifier must be persisted (in the session) so the matching callback
// can be validated and the code exchanged.
type AuthorizationRequest struct {
	// URL is the fully constructed authorization endpoint URL
	URL string

	// State is the CSRF state token embedded in the URL
	State string

	// CodeVerifier is the PKCE verifier whose challenge is embedded in the URL
	CodeVerifier string
}

// AuthorizationURLOptions customizes BuildAuthorizationURL. The zero value is
// valid: state and verifier are generated when not supplied.
type AuthorizationURLOptions struct {
	// State overrides the generated CSRF state token
	State string

	// CodeVerifier overrides the generated PKCE verifier
	CodeVerifier string

	// ExtraParams are additional query parameters merged into the URL
	ExtraParams map[string]string
}
