package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/dtroode/flavourmarket/internal/logger"
)

// Recover turns a panic in a handler into the error page rendered by onPanic.
type Recover struct {
	onPanic func(w http.ResponseWriter, r *http.Request)
	logger  *logger.Logger
}

func NewRecover(onPanic func(w http.ResponseWriter, r *http.Request), logger *logger.Logger) *Recover {
	return &Recover{onPanic: onPanic, logger: logger}
}

func (rc *Recover) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			rc.logger.Error("HTTP handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()))
			rc.onPanic(w, r)
		}()
		next.ServeHTTP(w, r)
	})
}
