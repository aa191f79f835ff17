package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vetcare/vetcare/libs/auth"
)

// SessionCookie carries the access token for browser sessions.
const SessionCookie = "session"

// Verifier checks a session token. *auth.Signer satisfies it.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Resolve attaches the caller identity to the request context when a valid
// bearer token or session cookie is present. Invalid credentials leave the
// request anonymous so the gate and handlers decide what to do.
func Resolve(v Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				logger.Debug("session token rejected", "path", r.URL.Path, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			role, err := ParseRole(claims.Role)
			if err != nil {
				logger.Warn("session token carries unknown role", "user_id", claims.Subject, "role", claims.Role)
				next.ServeHTTP(w, r)
				return
			}
			id := Identity{UserID: claims.Subject, ClinicID: claims.ClinicID, Role: role}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// TokenFromRequest prefers the Authorization header over the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// LogAttrs adds the caller to access log lines.
func LogAttrs(r *http.Request) []any {
	id := FromContext(r.Context())
	if id == nil {
		return nil
	}
	return []any{"user_id", id.UserID, "clinic_id", id.ClinicID, "role", string(id.Role)}
}
