package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/tansive/unifictl/internal/common/httpx"
)

// Recoverer turns a panicking controller handler into an api.err.Internal envelope
// so a test client sees a controller failure instead of a torn connection.
// http.ErrAbortHandler is passed through.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := httpx.NewResponseWriter(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Ctx(r.Context()).Error().
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("requestMethod", r.Method).
				Str("requestPath", r.URL.Path).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("controller handler panicked")
			if rw.Written() {
				return
			}
			httpx.ErrInternal().Send(rw)
		}()
		next.ServeHTTP(rw, r)
	})
}
