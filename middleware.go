package blitzware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/LanderDK/blitzware-go-sdk/instrumentation"
	"github.com/LanderDK/blitzware-go-sdk/sessions"
)

// Middleware decisions, recorded as metric attributes.
const (
	decisionAttach        = "attach"
	decisionRedirectLogin = "redirect_login"
	decisionServerError   = "server_error"
)

// Handler ties the protocol client to a session provider and exposes the
// authentication middleware plus the login, callback, and logout routes.
type Handler struct {
	cfg      *Config
	client   *Client
	provider sessions.Provider
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	tracer   trace.Tracer
	limiter  *ipLimiter
}

// NewHandler creates a Handler. The provider supplies the per-request session
// bag; a nil provider is accepted at construction but every request through
// the middleware then fails with a configuration error.
func NewHandler(cfg *Config, provider sessions.Provider) (*Handler, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	resolved := client.Config()

	tracer := tracenoop.NewTracerProvider().Tracer("")
	var metrics *instrumentation.Metrics
	if resolved.Instrumentation != nil {
		tracer = resolved.Instrumentation.Tracer("handler")
		metrics = resolved.Instrumentation.Metrics()
	}

	return &Handler{
		cfg:      resolved,
		client:   client,
		provider: provider,
		logger:   resolved.Logger,
		metrics:  metrics,
		tracer:   tracer,
		limiter:  newIPLimiter(resolved.LoginRateLimit),
	}, nil
}

// Client returns the underlying protocol client for direct use
func (h *Handler) Client() *Client {
	return h.client
}

// authResult is the outcome of one pass through the authentication state
// machine.
type authResult struct {
	decision    string
	user        *UserProfile
	accessToken string
	status      int
	errorCode   string
}

// authenticate runs the per-request authentication state machine against the
// session: validate the stored access token, refresh once on any validation
// failure (transport failures included, they count as rejections for
// retry-eligibility) when a refresh token is available, and fail closed to a
// fresh login otherwise.
func (h *Handler) authenticate(ctx context.Context, sess sessions.Session) *authResult {
	keys := h.cfg.SessionKeys

	accessToken := sessionString(sess, keys.AccessToken)
	if accessToken == "" {
		return &authResult{decision: decisionRedirectLogin}
	}

	user, err := h.client.ValidateTokenAndGetUser(ctx, accessToken)
	if err == nil {
		sess.Set(keys.User, user)
		if err := sess.Save(ctx); err != nil {
			h.logger.Error("failed to save session after validation", "error", err)
			return &authResult{decision: decisionServerError, status: http.StatusInternalServerError}
		}
		return &authResult{decision: decisionAttach, user: user, accessToken: accessToken}
	}

	code := ErrorCode(err)
	h.logger.Debug("access token validation failed", "error_code", code, "session_id", sess.ID())

	refreshToken := sessionString(sess, keys.RefreshToken)
	if h.cfg.DisableAutoRefresh || refreshToken == "" {
		h.clearAndSave(ctx, sess)
		return &authResult{decision: decisionRedirectLogin, errorCode: code}
	}

	tokens, err := h.client.RefreshToken(ctx, refreshToken)
	h.metrics.RecordRefresh(ctx, err == nil)
	if err != nil {
		h.logger.Info("token refresh failed, ending session", "session_id", sess.ID())
		h.clearAndSave(ctx, sess)
		return &authResult{decision: decisionRedirectLogin, errorCode: ErrorCode(err)}
	}

	storeTokens(sess, keys, tokens)

	user, err = h.client.GetUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		// The refreshed tokens are valid even though the profile fetch
		// failed, so persist them and surface a server error rather than
		// forcing a fresh login.
		if saveErr := sess.Save(ctx); saveErr != nil {
			h.logger.Error("failed to save refreshed tokens", "error", saveErr)
		}
		return &authResult{decision: decisionServerError, status: http.StatusInternalServerError, errorCode: ErrorCode(err)}
	}

	sess.Set(keys.User, user)
	if err := sess.Save(ctx); err != nil {
		h.logger.Error("failed to save session after refresh", "error", err)
		return &authResult{decision: decisionServerError, status: http.StatusInternalServerError}
	}
	return &authResult{decision: decisionAttach, user: user, accessToken: tokens.AccessToken}
}

func (h *Handler) clearAndSave(ctx context.Context, sess sessions.Session) {
	clearAuth(sess, h.cfg.SessionKeys)
	if err := sess.Save(ctx); err != nil {
		h.logger.Error("failed to save session after clearing auth state", "error", err)
	}
}

// attach puts the validated identity on the request context per configuration
func (h *Handler) attach(r *http.Request, res *authResult) *http.Request {
	ctx := r.Context()
	if !h.cfg.DisableUserContext {
		ctx = ContextWithUser(ctx, res.user)
	}
	if h.cfg.ExposeAccessToken {
		ctx = ContextWithAccessToken(ctx, res.accessToken)
	}
	return r.WithContext(ctx)
}

// RequireAuth is the browser-facing authentication middleware: requests with
// a valid (or refreshable) access token proceed with the user profile on the
// context, everything else is redirected to the login URL.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return h.require(next, func(w http.ResponseWriter, r *http.Request, res *authResult) {
		http.Redirect(w, r, h.cfg.LoginURL, http.StatusFound)
	})
}

// RequireAuthJSON is the API-facing variant: instead of redirecting, it
// responds 401 with a JSON error body.
func (h *Handler) RequireAuthJSON(next http.Handler) http.Handler {
	return h.require(next, func(w http.ResponseWriter, r *http.Request, res *authResult) {
		code := res.errorCode
		if code == "" {
			code = ErrorCodeTokenInactive
		}
		writeJSONError(w, http.StatusUnauthorized, code, "authentication required")
	})
}

func (h *Handler) require(next http.Handler, reject func(http.ResponseWriter, *http.Request, *authResult)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "blitzware.authenticate")
		defer span.End()

		sess, err := h.session(w, r)
		if err != nil {
			instrumentation.RecordError(span, err)
			h.metrics.RecordAuthDecision(ctx, decisionServerError)
			h.logger.Error("session provider failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "session infrastructure is unavailable")
			return
		}

		res := h.authenticate(ctx, sess)
		h.metrics.RecordAuthDecision(ctx, res.decision)
		instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrDecision, res.decision))

		switch res.decision {
		case decisionAttach:
			instrumentation.SetSpanSuccess(span)
			next.ServeHTTP(w, h.attach(r.WithContext(ctx), res))
		case decisionRedirectLogin:
			instrumentation.SetSpanSuccess(span)
			reject(w, r, res)
		default:
			instrumentation.SetSpanError(span, res.errorCode)
			writeJSONError(w, res.status, orDefault(res.errorCode, ErrorCodeNetworkError), "authentication backend failure")
		}
	})
}

// RequireSession is the session-only operating mode: it trusts the user
// record already in the session and makes no network calls. A request whose
// session carries a user proceeds with that user on the context; anything
// else is redirected to the login URL. Cheaper than RequireAuth, at the cost
// of honoring sessions whose tokens the authorization service has since
// revoked.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.session(w, r)
		if err != nil {
			h.metrics.RecordAuthDecision(r.Context(), decisionServerError)
			h.logger.Error("session provider failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "session_unavailable", "session infrastructure is unavailable")
			return
		}

		user := sessionUser(sess, h.cfg.SessionKeys.User)
		if user == nil {
			h.metrics.RecordAuthDecision(r.Context(), decisionRedirectLogin)
			http.Redirect(w, r, h.cfg.LoginURL, http.StatusFound)
			return
		}

		h.metrics.RecordAuthDecision(r.Context(), decisionAttach)
		if !h.cfg.DisableUserContext {
			r = r.WithContext(ContextWithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// session resolves the request's session, treating a missing provider the
// same as a broken one.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (sessions.Session, error) {
	if h.provider == nil {
		return nil, errSessionProviderMissing
	}
	return h.provider.Session(w, r)
}

var errSessionProviderMissing = errors.New("no session provider configured")

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
