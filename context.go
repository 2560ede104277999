package blitzware

import "context"

type userContextKey struct{}

type accessTokenContextKey struct{}

// ContextWithUser returns a context carrying the validated user profile
func ContextWithUser(ctx context.Context, user *UserProfile) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user profile attached by the authentication
// middleware, or false when the request did not pass through it.
func UserFromContext(ctx context.Context) (*UserProfile, bool) {
	user, ok := ctx.Value(userContextKey{}).(*UserProfile)
	return user, ok && user != nil
}

// ContextWithAccessToken returns a context carrying the raw access token.
// Only used when Config.ExposeAccessToken is set.
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey{}, token)
}

// AccessTokenFromContext returns the access token attached by the middleware,
// or false when none was attached.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenContextKey{}).(string)
	return token, ok && token != ""
}
