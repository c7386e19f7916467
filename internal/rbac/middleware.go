package rbac

import (
	"log/slog"
	"net/http"

	"github.com/gesticom/gesticom/internal/platform/httpx"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Policy *Policy
	Logger *slog.Logger
}

// Require rejects requests whose identity lacks capability.
func (m Middleware) Require(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := m.Policy.Authorize(r.Context(), capability); err != nil {
				if m.Logger != nil {
					m.Logger.Debug("rbac denied", slog.String("capability", capability), slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
