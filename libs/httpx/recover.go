package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
)

// WithRecover turns panics into 500 responses. When a Sentry client is initialised
// the panic is also reported with the request attached.
func WithRecover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				if hub := sentry.CurrentHub().Clone(); hub.Client() != nil {
					hub.Scope().SetRequest(r)
					hub.Scope().SetTag("request_id", RequestIDFromContext(r.Context()))
					hub.RecoverWithContext(r.Context(), rec)
				}
				WriteError(w, http.StatusInternalServerError, "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ReportError forwards an unexpected handler error to Sentry when configured.
func ReportError(r *http.Request, err error) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	if hub.Client() == nil {
		return
	}
	hub.Scope().SetRequest(r)
	hub.Scope().SetTag("request_id", RequestIDFromContext(r.Context()))
	hub.CaptureException(err)
}
