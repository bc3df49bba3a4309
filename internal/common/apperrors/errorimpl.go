package apperrors

import (
	"errors"
	"strings"
)

// appError is the concrete Error. Every method returns a new value; templates
// declared as package variables are never modified.
type appError struct {
	msg         string
	base        error   // template, reached by Unwrap
	causes      []error // template first, then attached errors
	statuscode  int
	expandError bool
}

// derive returns a child of e carrying msg and the given causes. The child keeps
// e's status code and expansion flag.
func (e *appError) derive(msg string, causes []error) *appError {
	return &appError{
		msg:         msg,
		base:        e,
		causes:      causes,
		statuscode:  e.statuscode,
		expandError: e.expandError,
	}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll joins the message with the messages of attached errors when expansion
// is on. Causes repeating the message are skipped, so a login failure reads
// "Authentication error; connection reset".
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.msg
	}
	parts := []string{e.msg}
	for _, err := range e.causes {
		if m := err.Error(); m != e.msg {
			parts = append(parts, m)
		}
	}
	return strings.Join(parts, "; ")
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.causes
}

// New starts a new error class below e. Only the status code carries over.
func (e *appError) New(msg string) Error {
	return &appError{msg: msg, base: e, statuscode: e.statuscode}
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.causes...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

// SetExpandError and SetStatusCode return a variant of e that still matches e
// through errors.Is.
func (e *appError) SetExpandError(flag bool) Error {
	child := e.derive(e.msg, e.causes)
	child.expandError = flag
	return child
}

func (e *appError) SetStatusCode(code int) Error {
	child := e.derive(e.msg, e.causes)
	child.statuscode = code
	return child
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

// New creates a root error class.
func New(msg string) Error {
	return &appError{msg: msg}
}

// Is matches target against the template chain and every attached error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.causes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
