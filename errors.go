package blitzware

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes as constants. This is a closed set: every protocol failure
// raised by the Client carries exactly one of these codes, so callers can
// branch on Code without parsing message text.
const (
	ErrorCodeMissingClientID          = "missing_client_id"
	ErrorCodeMissingClientSecret      = "missing_client_secret"
	ErrorCodeMissingRedirectURI       = "missing_redirect_uri"
	ErrorCodeInvalidState             = "invalid_state"
	ErrorCodeMissingAuthorizationCode = "missing_authorization_code"
	ErrorCodeTokenExchangeFailed      = "token_exchange_failed"
	ErrorCodeTokenRefreshFailed       = "token_refresh_failed"
	ErrorCodeUserInfoFailed           = "userinfo_failed"
	ErrorCodeTokenInactive            = "token_inactive"
	ErrorCodeNetworkError             = "network_error"
)

// Error is the structured error type raised on every failure path.
type Error struct {
	Code        string         // machine-readable error code (closed set above)
	Description string         // human-readable error description
	Status      int            // suggested HTTP status code
	Details     map[string]any // optional structured details (e.g. the remote error response)
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError creates a new structured error
func NewError(code, description string, status int) *Error {
	return &Error{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// WithDetails attaches structured details and returns the same error
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// AsError extracts a *Error from an error chain. It returns false when the
// error did not originate from this package.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrorCode returns the structured code for an error, or "" for foreign errors.
func ErrorCode(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// Common errors as reusable constructors
var (
	// ErrMissingClientID indicates the client ID was not configured
	ErrMissingClientID = func(desc string) *Error {
		return NewError(ErrorCodeMissingClientID, desc, http.StatusInternalServerError)
	}

	// ErrMissingClientSecret indicates the client secret was not configured
	ErrMissingClientSecret = func(desc string) *Error {
		return NewError(ErrorCodeMissingClientSecret, desc, http.StatusInternalServerError)
	}

	// ErrMissingRedirectURI indicates the redirect URI was not configured
	ErrMissingRedirectURI = func(desc string) *Error {
		return NewError(ErrorCodeMissingRedirectURI, desc, http.StatusInternalServerError)
	}

	// ErrInvalidState indicates the callback state did not match the expected state
	ErrInvalidState = func(desc string) *Error {
		return NewError(ErrorCodeInvalidState, desc, http.StatusBadRequest)
	}

	// ErrMissingAuthorizationCode indicates the callback carried no authorization code
	ErrMissingAuthorizationCode = func(desc string) *Error {
		return NewError(ErrorCodeMissingAuthorizationCode, desc, http.StatusBadRequest)
	}

	// ErrTokenExchangeFailed indicates the authorization service rejected the code exchange
	ErrTokenExchangeFailed = func(desc string) *Error {
		return NewError(ErrorCodeTokenExchangeFailed, desc, http.StatusUnauthorized)
	}

	// ErrTokenRefreshFailed indicates the authorization service rejected the refresh token
	ErrTokenRefreshFailed = func(desc string) *Error {
		return NewError(ErrorCodeTokenRefreshFailed, desc, http.StatusUnauthorized)
	}

	// ErrUserInfoFailed indicates the user-info request was rejected or returned a malformed response
	ErrUserInfoFailed = func(desc string) *Error {
		return NewError(ErrorCodeUserInfoFailed, desc, http.StatusBadGateway)
	}

	// ErrTokenInactive indicates introspection reported the token as inactive
	ErrTokenInactive = func(desc string) *Error {
		return NewError(ErrorCodeTokenInactive, desc, http.StatusUnauthorized)
	}

	// ErrNetworkError indicates a transport-level failure (timeout, connection
	// refused, or a non-2xx response with an unparseable body)
	ErrNetworkError = func(desc string) *Error {
		return NewError(ErrorCodeNetworkError, desc, http.StatusBadGateway)
	}
)
