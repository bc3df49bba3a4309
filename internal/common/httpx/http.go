// Package httpx provides server-side helpers that speak the controller's JSON envelope:
// every response is {"meta":{"rc":...,"msg":...},"data":[...]}. It backs the in-process
// fake controller used by tests.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/unifictl/internal/common/apperrors"
)

// GetRequestData parses JSON request body into the provided data structure.
// Only supports POST and PUT methods.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return ErrInvalidPayload()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrInvalidPayload()
	}
	return nil
}

// Response is the successful outcome of a RequestHandler.
type Response struct {
	StatusCode int // defaults to 200
	Data       any // becomes the envelope's data array; nil means empty
	Meta       map[string]any
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler, rendering errors and results as envelopes.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				statusCode := appErr.StatusCode()
				if statusCode == 0 {
					statusCode = http.StatusInternalServerError
				}
				httperror := &Error{
					StatusCode: statusCode,
					Code:       appErr.ErrorAll(),
				}
				httperror.Send(w)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		status := rsp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		SendEnvelope(r, w, status, ResultOK, rsp.Meta, rsp.Data)
	})
}
