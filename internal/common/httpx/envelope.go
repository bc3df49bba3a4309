package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Result codes carried in meta.rc.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Error represents an error envelope with its HTTP status and controller error code.
type Error struct {
	Code       string `json:"msg"`
	StatusCode int    `json:"-"`
}

// Send writes the error envelope. If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	writeEnvelope(w, e.StatusCode, map[string]any{"rc": ResultError, "msg": e.Code}, nil)
}

// Error returns the controller error code.
func (e *Error) Error() string {
	return e.Code
}

// SendEnvelope writes a response envelope with the given result code. Extra meta
// fields are merged next to rc.
func SendEnvelope(r *http.Request, w http.ResponseWriter, statusCode int, rc string, meta map[string]any, data any) {
	m := map[string]any{"rc": rc}
	for k, v := range meta {
		m[k] = v
	}
	if err := writeEnvelope(w, statusCode, m, data); err != nil {
		log.Ctx(r.Context()).Err(err).Msg("unable to marshal json")
	}
}

func writeEnvelope(w http.ResponseWriter, statusCode int, meta map[string]any, data any) error {
	if data == nil {
		data = []any{}
	}
	body, err := json.Marshal(map[string]any{"meta": meta, "data": data})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to encode response"))
		return err
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(statusCode)
	w.Write(body)
	return nil
}

// Common Errors

// ErrLoginRequired is returned for requests without a valid session.
func ErrLoginRequired() *Error {
	return &Error{Code: "api.err.LoginRequired", StatusCode: http.StatusUnauthorized}
}

// ErrInvalidCredentials is returned for a rejected login.
func ErrInvalidCredentials() *Error {
	return &Error{Code: "api.err.Invalid", StatusCode: http.StatusBadRequest}
}

// ErrInternal is returned when a handler fails unexpectedly.
func ErrInternal() *Error {
	return &Error{Code: "api.err.Internal", StatusCode: http.StatusInternalServerError}
}

// ErrInvalidPayload is returned when request data cannot be parsed.
func ErrInvalidPayload() *Error {
	return &Error{Code: "api.err.InvalidPayload", StatusCode: http.StatusBadRequest}
}

// ErrReqMethodNotSupported returns an error for unsupported HTTP methods.
func ErrReqMethodNotSupported() *Error {
	return &Error{Code: "api.err.MethodNotAllowed", StatusCode: http.StatusMethodNotAllowed}
}

// ErrNotFound returns an error for unknown endpoints.
func ErrNotFound() *Error {
	return &Error{Code: "api.err.NotFound", StatusCode: http.StatusNotFound}
}

// ErrApplicationError returns an error for application-level failures.
// If no code is provided, a default one is used.
func ErrApplicationError(code ...string) *Error {
	s := "api.err.ServerError"
	if len(code) > 0 {
		s = code[0]
	}
	return &Error{Code: s, StatusCode: http.StatusInternalServerError}
}
