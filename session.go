package blitzware

import (
	"encoding/json"

	"github.com/LanderDK/blitzware-go-sdk/sessions"
)

// sessionString reads a string value from the session, tolerating absence
func sessionString(sess sessions.Session, key string) string {
	v, ok := sess.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// sessionUser reads the stored user profile from the session. Stores that
// round-trip through JSON hand back a map[string]any instead of the original
// struct, so both shapes are accepted.
func sessionUser(sess sessions.Session, key string) *UserProfile {
	v, ok := sess.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch u := v.(type) {
	case *UserProfile:
		return u
	case UserProfile:
		return &u
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var profile UserProfile
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil
		}
		return &profile
	}
}

// storeTokens writes a token response into the session under the configured
// keys. A refresh that returned no new refresh token keeps the old one.
func storeTokens(sess sessions.Session, keys SessionKeys, tokens *TokenResponse) {
	sess.Set(keys.AccessToken, tokens.AccessToken)
	if tokens.RefreshToken != "" {
		sess.Set(keys.RefreshToken, tokens.RefreshToken)
	}
}

// clearAuth removes every auth-related field from the session, leaving any
// application-owned fields untouched
func clearAuth(sess sessions.Session, keys SessionKeys) {
	sess.Delete(keys.AccessToken)
	sess.Delete(keys.RefreshToken)
	sess.Delete(keys.User)
	sess.Delete(keys.State)
	sess.Delete(keys.CodeVerifier)
}
