package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/sectorinv/internal/auth"
	"github.com/vbonduro/sectorinv/internal/userapi"
)

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "admin")
	data["Sectors"] = s.inventory.SectorStats(r.Context())
	data["Recent"] = firstN(s.inventory.History(r.Context()), 5)
	if err := s.renderPage(w, http.StatusOK, data, "base.html", "pages/admin.html"); err != nil {
		s.logger.Error("render page error", "page", "admin", "error", err)
	}
}

// handleUserDashboard lists the catalogue from the user API. A rejected token
// ends the session.
func (s *Server) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	sess := auth.FromContext(r.Context())
	data := pageData(r, "dashboard")

	products, err := s.users.ListProducts(r.Context(), sess.Token)
	switch {
	case errors.Is(err, userapi.ErrUnauthorized):
		s.logger.Info("user API rejected token, ending session", "user_id", sess.Claims.UserID)
		if lerr := s.sessions.Logout(r.Context(), w, r); lerr != nil {
			s.logger.Error("logout failed", "error", lerr)
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case err != nil:
		s.logger.Error("failed to list remote products", "error", err)
		data["Error"] = "Could not load products"
	default:
		data["Products"] = products
	}

	if err := s.renderPage(w, http.StatusOK, data, "base.html", "pages/dashboard.html"); err != nil {
		s.logger.Error("render page error", "page", "dashboard", "error", err)
	}
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
