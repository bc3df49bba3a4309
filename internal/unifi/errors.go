package unifi

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/tansive/unifictl/internal/common/apperrors"
)

var (
	ErrClient            = apperrors.New("unifi client error")
	ErrInvalidOptions    = ErrClient.New("invalid client options")
	ErrInvalidRequest    = ErrClient.New("invalid request").SetStatusCode(http.StatusBadRequest)
	ErrNoResponse        = ErrClient.New("no response from controller")
	ErrServerResponse    = ErrClient.New("controller returned an error status")
	ErrAuthentication    = ErrClient.New("Authentication error").SetStatusCode(http.StatusUnauthorized)
	ErrSessionExpired    = ErrClient.New("session expired").SetStatusCode(http.StatusUnauthorized)
	ErrAPI               = ErrClient.New("controller rejected the request")
	ErrMalformedEnvelope = ErrAPI.New("malformed response envelope")
)

// TransportError reports an exchange that produced no response at all: DNS, connect
// and TLS failures, or a cancelled context. It never triggers reauthentication.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "no response from controller: " + e.Err.Error()
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrNoResponse, e.Err}
}

// ServerError is a response with a status of 400 or above. Envelope is set when the
// body decodes as one.
type ServerError struct {
	StatusCode int
	Body       []byte
	Envelope   *Envelope
}

func (e *ServerError) Error() string {
	if e.Envelope != nil && e.Envelope.Meta.Msg != "" {
		return fmt.Sprintf("controller returned %d: %s", e.StatusCode, e.Envelope.Meta.Msg)
	}
	return fmt.Sprintf("controller returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *ServerError) Unwrap() error {
	return ErrServerResponse
}

// AuthenticationError is returned to every caller waiting on a failed login.
// Envelope holds the controller's answer when there was one; Cause the exchange failure.
type AuthenticationError struct {
	Envelope *Envelope
	Cause    error
}

func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return "Authentication error: " + e.Cause.Error()
	}
	if e.Envelope != nil && e.Envelope.Meta.Msg != "" {
		return "Authentication error: " + e.Envelope.Meta.Msg
	}
	return "Authentication error"
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrAuthentication}
	}
	return []error{ErrAuthentication, e.Cause}
}

// APIError is a delivered response whose envelope is not "ok", or whose body is not
// an envelope at all (Err wraps ErrMalformedEnvelope then).
type APIError struct {
	StatusCode int
	Envelope   *Envelope
	Body       []byte
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Envelope == nil:
		return "controller rejected the request"
	case e.Envelope.Meta.Msg != "":
		return fmt.Sprintf("controller rejected the request: %s", e.Envelope.Meta.Msg)
	default:
		return fmt.Sprintf("controller rejected the request: rc=%q", e.Envelope.Meta.RC)
	}
}

func (e *APIError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAPI, e.Err}
	}
	return []error{ErrAPI}
}

// SessionExpiredError wraps the outcome of a retry that was itself rejected as
// unauthenticated after a fresh login.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	return "session expired: " + e.Err.Error()
}

func (e *SessionExpiredError) Unwrap() []error {
	return []error{ErrSessionExpired, e.Err}
}

// IsSessionExpired reports whether err signals that the controller no longer accepts
// the session: a 401 status, or an envelope or body carrying api.err.LoginRequired.
// Failures without a response never qualify.
func IsSessionExpired(err error) bool {
	var noResponse *TransportError
	if errors.As(err, &noResponse) {
		return false
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		if serverErr.StatusCode == http.StatusUnauthorized {
			return true
		}
		if serverErr.Envelope != nil {
			return serverErr.Envelope.Meta.Msg == LoginRequired
		}
		return bytes.Contains(serverErr.Body, []byte(LoginRequired))
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Envelope != nil {
			return apiErr.Envelope.Meta.Msg == LoginRequired
		}
		return bytes.Contains(apiErr.Body, []byte(LoginRequired))
	}
	return false
}
