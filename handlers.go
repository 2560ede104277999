package blitzware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/LanderDK/blitzware-go-sdk/instrumentation"
	"github.com/LanderDK/blitzware-go-sdk/sessions"
)

// ServeLogin starts a new login attempt: it generates fresh state and PKCE
// values, persists them in the session, and redirects the browser to the
// authorization endpoint. Each call overwrites any previous attempt's values,
// so only the most recent login attempt can complete.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "blitzware.login")
	defer span.End()

	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		h.logger.Warn("login rate limit exceeded", "remote_addr", r.RemoteAddr)
		writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		return
	}

	sess, err := h.session(w, r)
	if err != nil {
		instrumentation.RecordError(span, err)
		h.logger.Error("session provider failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "session infrastructure is unavailable")
		return
	}

	authReq := h.client.BuildAuthorizationURL(&AuthorizationURLOptions{
		ExtraParams: h.cfg.AuthorizationParams,
	})

	keys := h.cfg.SessionKeys
	sess.Set(keys.State, authReq.State)
	sess.Set(keys.CodeVerifier, authReq.CodeVerifier)
	if err := sess.Save(ctx); err != nil {
		instrumentation.RecordError(span, err)
		h.logger.Error("failed to persist login attempt", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "failed to persist login attempt")
		return
	}

	h.metrics.RecordLoginStarted(ctx)
	instrumentation.SetSpanSuccess(span)
	h.logger.Info("login started", "session_id", sess.ID())
	http.Redirect(w, r, authReq.URL, http.StatusFound)
}

// ServeCallback completes a login attempt. The session's one-time state and
// verifier are consumed on every invocation, success or failure, so a
// callback can never be replayed. Failures redirect to the failure URL with
// error_code set; the description never leaks into the redirect.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "blitzware.callback")
	defer span.End()

	sess, err := h.session(w, r)
	if err != nil {
		instrumentation.RecordError(span, err)
		h.logger.Error("session provider failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "session infrastructure is unavailable")
		return
	}

	keys := h.cfg.SessionKeys
	expectedState := sessionString(sess, keys.State)
	codeVerifier := sessionString(sess, keys.CodeVerifier)
	sess.Delete(keys.State)
	sess.Delete(keys.CodeVerifier)

	tokens, err := h.client.HandleCallback(ctx, r.URL.Query(), expectedState, codeVerifier)
	if err != nil {
		h.failCallback(ctx, w, r, sess, span, err)
		return
	}

	storeTokens(sess, keys, tokens)

	user, err := h.client.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		clearAuth(sess, keys)
		h.failCallback(ctx, w, r, sess, span, err)
		return
	}
	sess.Set(keys.User, user)

	if err := sess.Save(ctx); err != nil {
		instrumentation.RecordError(span, err)
		h.metrics.RecordCallback(ctx, false)
		h.logger.Error("failed to persist tokens", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "failed to persist tokens")
		return
	}

	h.metrics.RecordCallback(ctx, true)
	instrumentation.SetSpanSuccess(span)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrUserID, user.ID))
	h.logger.Info("login completed", "session_id", sess.ID(), "user_id", user.ID)
	http.Redirect(w, r, h.cfg.SuccessRedirect, http.StatusFound)
}

// failCallback persists the consumed one-time values and redirects to the
// failure URL carrying only the structured error code.
func (h *Handler) failCallback(ctx context.Context, w http.ResponseWriter, r *http.Request, sess sessions.Session, span trace.Span, err error) {
	if saveErr := sess.Save(ctx); saveErr != nil {
		h.logger.Error("failed to persist session after callback failure", "error", saveErr)
	}

	code := orDefault(ErrorCode(err), ErrorCodeNetworkError)
	instrumentation.RecordError(span, err)
	h.metrics.RecordCallback(ctx, false)
	h.logger.Warn("callback failed", "error_code", code, "error", err)

	target, parseErr := url.Parse(h.cfg.FailureRedirect)
	if parseErr != nil {
		http.Redirect(w, r, h.cfg.FailureRedirect, http.StatusFound)
		return
	}
	q := target.Query()
	q.Set("error_code", code)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// ServeLogout ends the local session and, depending on configuration, either
// routes the browser through the authorization service's logout endpoint or
// best-effort revokes the refresh token server side. Local state is always
// cleared first: a remote failure never leaves the user logged in locally.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "blitzware.logout")
	defer span.End()

	sess, err := h.session(w, r)
	if err != nil {
		instrumentation.RecordError(span, err)
		h.logger.Error("session provider failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "session infrastructure is unavailable")
		return
	}

	keys := h.cfg.SessionKeys
	refreshToken := sessionString(sess, keys.RefreshToken)

	clearAuth(sess, keys)
	if err := sess.Save(ctx); err != nil {
		h.logger.Error("failed to persist session after logout", "error", err)
	}

	if h.cfg.BrowserLogout {
		instrumentation.SetSpanSuccess(span)
		h.logger.Info("logout via browser redirect", "session_id", sess.ID())
		http.Redirect(w, r, h.client.BrowserLogoutURL(h.cfg.LogoutRedirect), http.StatusFound)
		return
	}

	if refreshToken != "" {
		if err := h.client.RevokeToken(ctx, refreshToken, "refresh_token"); err != nil {
			h.logger.Warn("refresh token revocation failed", "error", err)
		}
	}
	if err := h.client.Logout(ctx); err != nil {
		h.logger.Warn("remote logout failed", "error", err)
	}

	instrumentation.SetSpanSuccess(span)
	h.logger.Info("logout completed", "session_id", sess.ID())
	http.Redirect(w, r, h.cfg.LogoutRedirect, http.StatusFound)
}

// writeJSONError writes a JSON error body in the familiar OAuth shape
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}
