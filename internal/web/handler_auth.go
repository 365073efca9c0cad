package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vbonduro/sectorinv/internal/auth"
	"github.com/vbonduro/sectorinv/internal/userapi"
)

const loginFailedMessage = "Falha no login"

var loginFiles = []string{"base.html", "pages/login.html"}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w, http.StatusOK, pageData(r, "login"), loginFiles...); err != nil {
		s.logger.Error("render page error", "page", "login", "error", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	senha := r.FormValue("senha")
	if email == "" || senha == "" {
		s.renderLoginError(w, r, http.StatusBadRequest, email, "Email and password are required")
		return
	}

	token, err := s.users.Login(r.Context(), email, senha)
	if err != nil {
		var loginErr *userapi.LoginError
		if errors.As(err, &loginErr) {
			s.logger.Info("login rejected", "email", email, "status", loginErr.Status)
			s.renderLoginError(w, r, http.StatusUnauthorized, email, loginErr.Message)
			return
		}
		s.logger.Error("login request failed", "error", err)
		s.renderLoginError(w, r, http.StatusBadGateway, email, loginFailedMessage)
		return
	}

	sess, err := s.sessions.Login(r.Context(), w, token)
	if err != nil {
		s.logger.Error("failed to start session", "error", err)
		s.renderLoginError(w, r, http.StatusBadGateway, email, loginFailedMessage)
		return
	}

	http.Redirect(w, r, homeFor(sess.Claims.Papel), http.StatusSeeOther)
}

func (s *Server) renderLoginError(w http.ResponseWriter, r *http.Request, status int, email, message string) {
	data := pageData(r, "login")
	data["Email"] = email
	data["Error"] = message
	if err := s.renderPage(w, status, data, loginFiles...); err != nil {
		s.logger.Error("render page error", "page", "login", "error", err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), w, r); err != nil {
		s.logger.Error("logout failed", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "")
	if sess, err := s.sessions.Current(r.Context(), r); err == nil && sess != nil && sess.Claims.Papel.Valid() {
		data["Home"] = homeFor(sess.Claims.Papel)
	}
	if err := s.renderPage(w, http.StatusForbidden, data, "base.html", "pages/unauthorized.html"); err != nil {
		s.logger.Error("render page error", "page", "unauthorized", "error", err)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w, http.StatusNotFound, pageData(r, ""), "base.html", "pages/not_found.html"); err != nil {
		s.logger.Error("render page error", "page", "not_found", "error", err)
	}
}

// homeFor is where a role lands after signing in.
func homeFor(role auth.Role) string {
	switch {
	case role == auth.RoleAdmin:
		return "/admin"
	case role.Valid():
		return "/dashboard"
	default:
		return "/unauthorized"
	}
}
