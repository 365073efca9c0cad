package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/vbonduro/sectorinv/internal/auth"
	"github.com/vbonduro/sectorinv/internal/service"
	"github.com/vbonduro/sectorinv/internal/userapi"
)

// userAPI is the subset of userapi.Client that Server requires.
type userAPI interface {
	Login(ctx context.Context, email, senha string) (string, error)
	ListProducts(ctx context.Context, token string) ([]userapi.RemoteProduct, error)
}

type Server struct {
	inventory *service.InventoryService
	sessions  *auth.Sessions
	guard     *auth.Guard
	users     userAPI
	templates embed.FS
	mux       *http.ServeMux
	handler   http.Handler
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(inv *service.InventoryService, sessions *auth.Sessions, users userAPI, tmpl embed.FS, logger *slog.Logger) *Server {
	s := &Server{
		inventory: inv,
		sessions:  sessions,
		guard:     auth.NewGuard(sessions, logger),
		users:     users,
		templates: tmpl,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.tmplFuncs = template.FuncMap{
		"flags":    inv.Flags,
		"date":     formatDate,
		"datetime": func(t time.Time) string { return t.Local().Format("02/01/2006 15:04") },
		"dict":     dict,
	}
	s.registerRoutes()
	s.handler = gzhttp.GzipHandler(requestLogger(logger, securityHeaders(s.mux)))
	return s
}

func (s *Server) registerRoutes() {
	admin := s.guard.Require(auth.RoleAdmin)
	dashboard := s.guard.Require(auth.RoleLeitor, auth.RoleOperador)
	readers := s.guard.Require(auth.RoleAdmin, auth.RoleOperador, auth.RoleLeitor)
	editors := s.guard.Require(auth.RoleAdmin, auth.RoleOperador)

	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /unauthorized", s.handleUnauthorized)

	s.mux.Handle("GET /admin", admin(http.HandlerFunc(s.handleAdminDashboard)))
	s.mux.Handle("GET /dashboard", dashboard(http.HandlerFunc(s.handleUserDashboard)))

	s.mux.Handle("GET /inventory", readers(http.HandlerFunc(s.handleInventory)))
	s.mux.Handle("GET /inventory/sectors/{id}", readers(http.HandlerFunc(s.handleSectorDetail)))
	s.mux.Handle("GET /inventory/history", readers(http.HandlerFunc(s.handleHistory)))

	s.mux.Handle("POST /inventory/sectors", editors(http.HandlerFunc(s.handleCreateSector)))
	s.mux.Handle("PUT /inventory/sectors/{id}", editors(http.HandlerFunc(s.handleRenameSector)))
	s.mux.Handle("DELETE /inventory/sectors/{id}", editors(http.HandlerFunc(s.handleDeleteSector)))
	s.mux.Handle("POST /inventory/sectors/{id}/products", editors(http.HandlerFunc(s.handleCreateProduct)))
	s.mux.Handle("POST /inventory/products/{id}/quantity", editors(http.HandlerFunc(s.handleQuantityAction)))
	s.mux.Handle("DELETE /inventory/products/{id}", editors(http.HandlerFunc(s.handleDeleteProduct)))

	s.mux.HandleFunc("/", s.handleNotFound)
}

// securityHeaders sets browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains open requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses and executes a single named partial template.
// The file must contain exactly one {{define "name"}}...{{end}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// ParseFS registers both the file-basename template and any {{define}} blocks.
	basename := file
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		basename = file[idx+1:]
	}
	for _, t := range tmpl.Templates() {
		if n := t.Name(); n != "" && n != basename {
			return t.Execute(w, data)
		}
	}
	return tmpl.ExecuteTemplate(w, basename, data)
}

// pageData seeds template data with the signed-in user, if any.
func pageData(r *http.Request, nav string) map[string]any {
	data := map[string]any{"ActiveNav": nav}
	if sess := auth.FromContext(r.Context()); sess != nil {
		data["User"] = sess.Claims
		data["CanEdit"] = canEdit(sess.Claims.Papel)
		data["IsAdmin"] = sess.Claims.Papel == auth.RoleAdmin
	}
	return data
}

func canEdit(role auth.Role) bool {
	return role == auth.RoleAdmin || role == auth.RoleOperador
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02/01/2006")
}

// dict builds a map from alternating keys and values for passing several
// values into a nested template.
func dict(pairs ...any) map[string]any {
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if k, ok := pairs[i].(string); ok {
			m[k] = pairs[i+1]
		}
	}
	return m
}
