package util

import (
	"net/http"
	"runtime/debug"
)

// WithRecover turns a handler panic into onPanic's response instead of a
// dropped connection. The stack goes to the request logger.
func WithRecover(onPanic http.HandlerFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			LoggerFromContext(r.Context()).Error("panic serving request",
				"panic", rec,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			if onPanic == nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			onPanic(w, r)
		}()
		next.ServeHTTP(w, r)
	})
}
