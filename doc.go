// Package blitzware implements an OAuth 2.0 Authorization Code client with
// PKCE for confidential web applications authenticating users against a
// BlitzWare authorization service.
//
// The package has three layers:
//
//   - Client: the stateless protocol client. It builds authorization URLs,
//     exchanges authorization codes, refreshes and introspects tokens, fetches
//     user profiles, and revokes tokens. Every failure is reported as *Error
//     with a machine-readable code.
//
//   - Handler: HTTP route orchestrators (ServeLogin, ServeCallback,
//     ServeLogout) and authentication middleware (RequireAuth, RequireAuthJSON,
//     RequireSession) that keep token and user state in a caller-supplied
//     session store.
//
//   - sessions: the session bag contract plus in-memory and Valkey backends.
//
// Minimal setup:
//
//	cfg := &blitzware.Config{
//		ClientID:     os.Getenv("BLITZWARE_CLIENT_ID"),
//		ClientSecret: os.Getenv("BLITZWARE_CLIENT_SECRET"),
//		RedirectURI:  "https://example.com/auth/callback",
//	}
//	store := memory.New()
//	manager := sessions.NewManager(store, sessions.Options{})
//	handler, err := blitzware.NewHandler(cfg, manager)
package blitzware
