// Package apperrors provides chainable errors that carry a status code and keep every
// wrapped cause reachable through errors.Is and errors.As. The client core builds its
// error classes on top of it.
package apperrors

import "errors"

// Error defines the interface for application errors. Every method that derives a new
// error returns Error so calls can be chained.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetStatusCode(int) Error               // sets HTTP status code for the error
	StatusCode() int                       // returns the current status code
	ErrorAll() string                      // returns full message including wrapped errors
	UnwrapAll() []error                    // returns all wrapped errors
}

// StatusCodeOf returns the status code of the first Error found in err's chain,
// or 0 when the chain carries none.
func StatusCodeOf(err error) int {
	var appErr Error
	for err != nil {
		if errors.As(err, &appErr) {
			if code := appErr.StatusCode(); code != 0 {
				return code
			}
			err = appErr.Unwrap()
			continue
		}
		return 0
	}
	return 0
}
