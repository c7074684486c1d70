package domain

import "fmt"

// The error taxonomy from spec §7. Every variant is a concrete type so
// internal/server can map it to an HTTP response with a type switch instead
// of matching on Error() strings.

// AuthError means the refresh token was rejected outright; the login must
// be re-seeded by the operator. Never retried silently.
type AuthError struct {
	LoginID string
	Detail  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error for login %s: %s", e.LoginID, e.Detail)
}

// RateLimitError means the broker returned 429/418 (or equivalent) and the
// retry budget inside the broker client was exhausted.
type RateLimitError struct {
	HTTPStatus int
	RetryAfter float64 // seconds, 0 if the broker didn't say
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d, retry-after %.1fs)", e.HTTPStatus, e.RetryAfter)
}

// TransientError means a network failure or 5xx that the broker client's
// smaller retry budget also gave up on.
type TransientError struct {
	HTTPStatus int
	Cause      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient broker error (status %d): %v", e.HTTPStatus, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// WindowTooWideError is internal to C2/C4: a request exceeded the broker's
// date-window cap. It must never escape C4 — the crawler slices instead.
type WindowTooWideError struct {
	MaxDays int
	GotDays int
}

func (e *WindowTooWideError) Error() string {
	return fmt.Sprintf("requested window of %d days exceeds the %d-day cap", e.GotDays, e.MaxDays)
}

// ConfigErrorCode enumerates the codes spec §7 names for ConfigError.
type ConfigErrorCode string

const (
	ConfigErrInvalidProportions ConfigErrorCode = "INVALID_PROPORTIONS"
	ConfigErrInvalidAccount     ConfigErrorCode = "INVALID_ACCOUNT"
	ConfigErrInvalidSymbol      ConfigErrorCode = "INVALID_SYMBOL"
	ConfigErrNotFound           ConfigErrorCode = "NOT_FOUND"
	ConfigErrParseError         ConfigErrorCode = "PARSE_ERROR"
)

// ConfigError is returned as a 4xx with its Code by internal/server.
type ConfigError struct {
	Code    ConfigErrorCode
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// PlannerError means the planner had insufficient inputs (e.g. no price for
// DLR.TO when a conversion is needed). The planner returns nil alongside this.
type PlannerError struct {
	Message string
}

func (e *PlannerError) Error() string { return e.Message }

// BrokerErrorKind classifies a raw broker-call failure before it is
// resolved into one of the concrete error types above.
type BrokerErrorKind string

const (
	BrokerErrAuth        BrokerErrorKind = "Auth"
	BrokerErrRateLimited BrokerErrorKind = "RateLimited"
	BrokerErrTransient   BrokerErrorKind = "Transient"
	BrokerErrPermanent   BrokerErrorKind = "Permanent"
	BrokerErrMalformed   BrokerErrorKind = "Malformed"
)

// TokenRefreshFailed is returned by internal/tokenstore when the broker
// rejects or fails to answer a refresh-token call (spec §4.1).
type TokenRefreshFailed struct {
	LoginID    string
	HTTPStatus int
	Detail     string
	Cause      error
}

func (e *TokenRefreshFailed) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("token refresh failed for login %s: %v", e.LoginID, e.Cause)
	}
	return fmt.Sprintf("token refresh failed for login %s (status %d): %s", e.LoginID, e.HTTPStatus, e.Detail)
}

func (e *TokenRefreshFailed) Unwrap() error { return e.Cause }

// BrokerError is the structured error internal/broker returns for any
// upstream call; retry policy and translation to the taxonomy above read
// Kind to decide what to do next.
type BrokerError struct {
	Kind       BrokerErrorKind
	HTTPStatus int
	Payload    string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error [%s] status=%d: %s", e.Kind, e.HTTPStatus, e.Payload)
}
