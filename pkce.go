package blitzware

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// CodeChallengeMethodS256 is the only PKCE challenge method this client emits.
const CodeChallengeMethodS256 = "S256"

// randomToken returns n bytes from the system CSPRNG encoded as unpadded
// base64url. It panics on RNG failure: a broken randomness source means no
// state or verifier can be trusted, which is fatal and non-retryable.
func randomToken(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateState returns a fresh CSRF state token with 256 bits of entropy,
// encoded as a 43-character URL-safe string.
func GenerateState() string {
	return randomToken(32)
}

// GenerateCodeVerifier returns a fresh PKCE code verifier. 32 random bytes
// encode to 43 characters, the minimum length RFC 7636 allows and plenty of
// entropy.
func GenerateCodeVerifier() string {
	return randomToken(32)
}

// DeriveCodeChallenge derives the S256 code challenge for a verifier:
// unpadded base64url of the SHA-256 digest. Deterministic and one-way; the
// transform must match the authorization service's PKCE validation exactly.
func DeriveCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
