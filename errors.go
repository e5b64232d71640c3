package vaillant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by the client. Every failure surfaced to a caller
// is one of these (possibly wrapped in an APIError or NetworkError carrying
// the original status and body), never a raw transport error.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("vaillant: invalid credentials (grant rejected)")
	ErrUnauthorized       = errors.New("vaillant: unauthorized (invalid or expired token)")
	ErrForbidden          = errors.New("vaillant: forbidden")
	ErrNoToken            = errors.New("vaillant: no token available - authentication required")

	// Resource errors
	ErrNotFound = errors.New("vaillant: resource not found")

	// Transient errors, recovered by the retry policy
	ErrRateLimited = errors.New("vaillant: rate limited (too many requests)")
	ErrServerError = errors.New("vaillant: server error")
	ErrTimeout     = errors.New("vaillant: request timed out")

	// ErrUnexpectedResponse is returned when the API answers 200 but the
	// response envelope does not carry status "ok".
	ErrUnexpectedResponse = errors.New("vaillant: unexpected response status")

	// Configuration validation errors
	ErrEmptyClientID     = errors.New("vaillant: client ID cannot be empty")
	ErrEmptyClientSecret = errors.New("vaillant: client secret cannot be empty")
	ErrNilTokenStore     = errors.New("vaillant: token store is required")

	// Request validation errors
	ErrEmptyDeviceID   = errors.New("vaillant: device ID cannot be empty")
	ErrEmptyModuleID   = errors.New("vaillant: module ID cannot be empty")
	ErrEmptyScheduleID = errors.New("vaillant: schedule ID cannot be empty")

	// Minor mode validation errors
	ErrSetpointTempRequired      = errors.New("vaillant: setpoint temperature is required for activating manual mode")
	ErrSetpointTempNotAllowed    = errors.New("vaillant: setpoint temperature is only valid when activating manual mode")
	ErrSetpointEndtimeRequired   = errors.New("vaillant: setpoint end time is required for this mode")
	ErrSetpointEndtimeNotAllowed = errors.New("vaillant: setpoint end time is only valid when activating a mode")
	ErrSetpointEndtimeInPast     = errors.New("vaillant: setpoint end time must be in the future")
)

// APIError represents an error response from the Netatmo API. It carries the
// original status code and, when the body could be parsed, the provider's
// error code and message for diagnostics.
type APIError struct {
	StatusCode int
	Code       string
	Message    string

	kind error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("vaillant: API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("vaillant: API error %d: %s", e.StatusCode, e.Code)
	case e.Message != "":
		return fmt.Sprintf("vaillant: API error %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("vaillant: API error %d", e.StatusCode)
	}
}

// Is allows errors.Is() to match the sentinel variant this error was
// classified as.
func (e *APIError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// NetworkError wraps a connection-level failure (timeout, reset, DNS) so
// transport errors never escape the pipeline unmapped.
type NetworkError struct {
	Err     error
	timeout bool
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.timeout {
		return "vaillant: request timed out: " + e.Err.Error()
	}
	return "vaillant: network error: " + e.Err.Error()
}

// Unwrap returns the underlying transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is allows errors.Is() to match ErrTimeout for timeout failures.
func (e *NetworkError) Is(target error) bool {
	return e.timeout && target == ErrTimeout
}

// Timeout reports whether the failure was a timeout.
func (e *NetworkError) Timeout() bool { return e.timeout }

// statusKinds maps HTTP status codes to their sentinel classification.
// Unlisted codes classify as Unknown (an APIError with no sentinel), which
// keeps classification total as the upstream API grows new codes.
var statusKinds = map[int]error{
	http.StatusUnauthorized:    ErrUnauthorized,
	http.StatusForbidden:       ErrForbidden,
	http.StatusNotFound:        ErrNotFound,
	http.StatusTooManyRequests: ErrRateLimited,
}

// oauthErrorBody is the token endpoint's error shape.
type oauthErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// apiErrorBody is the data API's error shape.
type apiErrorBody struct {
	Error struct {
		Code    json.Number `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

// classifyStatus maps an HTTP error response to a typed error. It is a pure
// mapping: it parses the body on a best-effort basis and never fails itself.
func classifyStatus(statusCode int, body []byte, header http.Header) error {
	code, message := parseErrorBody(body)

	kind := statusKinds[statusCode]
	if kind == nil && statusCode >= 500 && statusCode < 600 {
		kind = ErrServerError
	}

	// A 400 from the token endpoint with an invalid_grant style body means
	// the credentials themselves were rejected.
	if statusCode == http.StatusBadRequest {
		switch code {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			kind = ErrInvalidCredentials
		}
	}

	if statusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
			APIError:   APIError{StatusCode: statusCode, Code: code, Message: message, kind: ErrRateLimited},
		}
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		kind:       kind,
	}
}

// parseErrorBody extracts the provider error code and message from a
// response body. Both the OAuth shape ({"error": "...", "error_description":
// "..."}) and the data API shape ({"error": {"code": n, "message": "..."}})
// are handled; anything else yields a truncated body preview.
func parseErrorBody(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}

	var oauthErr oauthErrorBody
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		return oauthErr.Error, oauthErr.ErrorDescription
	}

	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Error.Code != "" || apiErr.Error.Message != "") {
		return apiErr.Error.Code.String(), apiErr.Error.Message
	}

	return "", truncatePreview(body)
}

// classifyTransportError wraps a failure from the HTTP transport so
// IsTimeout/IsRetryable can inspect it.
func classifyTransportError(err error) error {
	var netErr interface{ Timeout() bool }
	timeout := errors.As(err, &netErr) && netErr.Timeout()
	return &NetworkError{Err: err, timeout: timeout}
}

// IsInvalidCredentials returns true if the error indicates the password or
// refresh grant was rejected by the provider.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsUnauthorized returns true if the error indicates an authentication
// failure (401) that a token refresh may resolve.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden returns true if the error indicates the request was forbidden.
// The Netatmo API answers 403 for some expired tokens, so a forbidden
// response also triggers the refresh-and-retry path.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates the resource was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsServerError returns true if the error indicates a 5xx response.
func IsServerError(err error) bool {
	return errors.Is(err, ErrServerError)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable returns true if the error is a transient failure the retry
// policy may recover: rate limits, 5xx responses, timeouts, and
// connection-level failures. Auth and validation errors are not retryable.
func IsRetryable(err error) bool {
	if IsRateLimited(err) || IsServerError(err) || IsTimeout(err) {
		return true
	}
	var nerr *NetworkError
	return errors.As(err, &nerr)
}
