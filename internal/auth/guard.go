package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/vbonduro/sectorinv/internal/service"
)

type sessionKey struct{}

// FromContext returns the session placed by Guard, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Guard gates handlers on the session's role.
type Guard struct {
	sessions *Sessions
	logger   *slog.Logger
}

func NewGuard(sessions *Sessions, logger *slog.Logger) *Guard {
	return &Guard{sessions: sessions, logger: logger}
}

// Require lets the request through only for the listed roles. Anonymous
// requests go to /login, other roles to /unauthorized.
func (g *Guard) Require(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := g.sessions.Current(r.Context(), r)
			if err != nil {
				g.logger.Error("session lookup failed", "path", r.URL.Path, "error", err)
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			if sess == nil {
				redirect(w, r, "/login")
				return
			}
			if !slices.Contains(roles, sess.Claims.Papel) {
				redirect(w, r, "/unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sess)
			ctx = service.WithResponsible(ctx, sess.Claims.Nome)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// redirect uses HX-Redirect for htmx requests so the whole page navigates.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
