package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeValidationFailed     = "VALIDATION_FAILED"
	textCodeMissingAccessToken   = "MISSING_ACCESS_TOKEN"
	textCodeMissingRefreshToken  = "MISSING_REFRESH_TOKEN"
	textCodeRequestTimeout       = "REQUEST_TIMEOUT"
	textCodeSessionExpired       = "SESSION_EXPIRED"
	textCodeSessionForbidden     = "SESSION_FORBIDDEN"
	textCodeSubscriptionRequired = "SUBSCRIPTION_REQUIRED"
)

// ErrNoToken is returned when a well formed token endpoint response
// omits the access token. Callers treat it as a hard auth failure.
var ErrNoToken = goerrors.New("server response missing access token", goerrors.CategoryOperation).
	WithTextCode(textCodeMissingAccessToken)

// ErrNoRefreshToken is returned when a refresh is requested but no
// refresh token is stored.
var ErrNoRefreshToken = goerrors.New("no refresh token available", goerrors.CategoryAuth).
	WithTextCode(textCodeMissingRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is surfaced after a failed refresh cleared the session.
var ErrSessionExpired = goerrors.New("session expired", goerrors.CategoryAuth).
	WithTextCode(textCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthenticated is returned by operations that require a stored credential.
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// NewValidationError shapes client side validation failures the way the
// backend shapes its own 422 responses: a field to message map the UI
// can render next to inputs. It never reaches the network.
func NewValidationError(fields map[string]string) *goerrors.Error {
	meta := map[string]any{"status": http.StatusUnprocessableEntity}
	if len(fields) > 0 {
		meta["validation"] = fields
	}
	return goerrors.New("validation failed", goerrors.CategoryValidation).
		WithTextCode(textCodeValidationFailed).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}

// NewServerError normalizes a non-2xx response into the rich error shape
// handed to UI code: message, status, field errors, wrapped cause.
func NewServerError(status int, message string, fields map[string]string, cause error) *goerrors.Error {
	if message == "" {
		message = http.StatusText(status)
	}

	var err *goerrors.Error
	switch {
	case status == http.StatusUnauthorized:
		err = newOrWrap(cause, goerrors.CategoryAuth, message).
			WithCode(goerrors.CodeUnauthorized)
	case status == http.StatusForbidden:
		err = newOrWrap(cause, goerrors.CategoryAuthz, message).
			WithCode(goerrors.CodeForbidden).
			WithTextCode(textCodeSessionForbidden)
	case status == http.StatusPaymentRequired:
		err = newOrWrap(cause, goerrors.CategoryAuthz, message).
			WithCode(goerrors.CodeForbidden).
			WithTextCode(textCodeSubscriptionRequired)
	case status == http.StatusNotFound:
		err = newOrWrap(cause, goerrors.CategoryNotFound, message).
			WithCode(goerrors.CodeNotFound)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		err = newOrWrap(cause, goerrors.CategoryValidation, message).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(textCodeValidationFailed)
	case status == http.StatusConflict:
		err = newOrWrap(cause, goerrors.CategoryConflict, message).
			WithCode(goerrors.CodeConflict)
	case status >= 500:
		err = newOrWrap(cause, goerrors.CategoryInternal, message).
			WithCode(goerrors.CodeInternal)
	default:
		err = newOrWrap(cause, goerrors.CategoryInternal, message)
	}

	meta := map[string]any{"status": status}
	if len(fields) > 0 {
		meta["validation"] = fields
	}
	return err.WithMetadata(meta)
}

// NewTransientError wraps timeout/network class failures so callers can
// decide between retry and cache fallback.
func NewTransientError(cause error, message string) *goerrors.Error {
	return newOrWrap(cause, goerrors.CategoryOperation, message).
		WithTextCode(textCodeRequestTimeout)
}

func newOrWrap(cause error, category goerrors.Category, message string) *goerrors.Error {
	if cause == nil {
		return goerrors.New(message, category)
	}
	return goerrors.Wrap(cause, category, message)
}

// IsValidationError reports whether err is a client or server side
// validation failure (the 422 shape).
func IsValidationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryValidation
}

// IsAuthenticationError reports a 401 class failure.
func IsAuthenticationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth
}

// IsAuthorizationError reports a 403 class failure.
func IsAuthorizationError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuthz
}

// IsTransientError reports timeout/network class failures that were not
// recovered by the transport's retry budget.
func IsTransientError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCodeRequestTimeout
}

// IsProtocolError reports a well formed response that was missing an
// expected field, such as the access token.
func IsProtocolError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCodeMissingAccessToken ||
		richErr.TextCode == textCodeMissingRefreshToken
}

// ValidationFields extracts the field to message map carried by a
// validation error, or nil.
func ValidationFields(err error) map[string]string {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}
	if richErr.Metadata == nil {
		return nil
	}
	if fields, ok := richErr.Metadata["validation"].(map[string]string); ok {
		return fields
	}
	return nil
}

// ErrorStatus extracts the HTTP status attached to a normalized error,
// or 0 when none was recorded.
func ErrorStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return 0
	}
	if richErr.Metadata == nil {
		return 0
	}
	if status, ok := richErr.Metadata["status"].(int); ok {
		return status
	}
	return 0
}
