package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/insights"
	"github.com/justestif/wellness-tracker/internal/realtime"
	"github.com/justestif/wellness-tracker/internal/tracker"
)

// DefaultAddr is the default server address.
const DefaultAddr = ":8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr        string
	TemplatesFS fs.FS
	StaticFS    fs.FS

	// Auth and Tracker are nil when no store is configured; the server then
	// only renders a setup notice.
	Auth    *auth.Service
	Tracker *tracker.Service
	Hub     *realtime.Hub

	SessionTTL    time.Duration
	SecureCookies bool
	Insights      insights.Config
	Logger        *slog.Logger

	// Ping checks the backing store for /healthz. Nil reports healthy.
	Ping func(ctx context.Context) error
}

// Server is the HTTP server for the web application.
type Server struct {
	router    chi.Router
	server    *http.Server
	templates *Templates
	sessions  *SessionManager
	handlers  *Handlers
	ping      func(ctx context.Context) error
	logger    *slog.Logger

	unsubscribe func()
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Hub == nil {
		cfg.Hub = realtime.NewHub()
	}
	if (cfg.Auth == nil) != (cfg.Tracker == nil) {
		return nil, errors.New("auth and tracker services must be configured together")
	}

	templates, err := NewTemplates(cfg.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	var sessions *SessionManager
	if cfg.Auth != nil {
		sessions = NewSessionManager(cfg.Auth, cfg.SessionTTL, cfg.SecureCookies, cfg.Logger)
	}

	s := &Server{
		router:    chi.NewRouter(),
		templates: templates,
		sessions:  sessions,
		handlers:  NewHandlers(cfg.Auth, cfg.Tracker, cfg.Hub, sessions, templates, cfg.Insights, cfg.Logger),
		ping:      cfg.Ping,
		logger:    cfg.Logger,
	}

	if cfg.Auth != nil {
		s.unsubscribe = cfg.Auth.OnAuthStateChange(s.logAuthEvent)
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.StaticFS)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(staticFS fs.FS) {
	h := s.handlers

	fileServer := http.FileServer(http.FS(staticFS))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	s.router.Get("/healthz", s.health)
	s.router.Handle("/metrics", promhttp.Handler())

	if !h.configured() {
		s.router.HandleFunc("/api/v1/*", h.apiNotConfigured)
		s.router.HandleFunc("/*", h.NotConfigured)
		return
	}

	s.router.Route("/api/v1", h.apiRoutes)

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(s.guard)

		r.Get("/", h.Home)

		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)
		r.Get("/signup", h.SignupPage)
		r.Post("/signup", h.Signup)
		r.Get("/forgot-password", h.ForgotPasswordPage)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Get("/reset-password", h.ResetPasswordPage)
		r.Post("/reset-password", h.ResetPassword)

		r.Get("/auth/confirm", h.Confirm)
		r.Post("/auth/resend", h.Resend)
		r.Post("/auth/logout", h.Logout)

		r.Route(dashboardPath, func(r chi.Router) {
			r.Get("/", h.Dashboard)
			r.Get("/profile", h.Profile)
			r.Post("/profile", h.SaveProfile)
			r.Post("/profile/password", h.ChangePassword)
			r.Post("/profile/delete", h.DeleteAccount)
			r.Get("/insights", h.Insights)
			r.Get("/{tracker}", h.Tracker)
			r.Post("/{tracker}", h.SaveEntry)
			r.Get("/{tracker}/entries", h.EntryList)
		})
	})
}

// guard loads the cookie session and applies Redirect to page requests.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.GetFromRequest(w, r)
		if target, ok := Redirect(r.URL.Path, sess != nil); ok {
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if !s.handlers.configured() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_configured"})
		return
	}
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logAuthEvent(event auth.Event, sess *auth.Session) {
	attrs := []any{"event", event}
	if sess != nil && sess.User != nil {
		attrs = append(attrs, "user", sess.User.ID)
	}
	s.logger.Info("auth state changed", attrs...)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return s.server.Shutdown(ctx)
}

// Run starts the server and shuts it down gracefully once ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
