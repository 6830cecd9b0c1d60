package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supermart-dashboard/internal/auth"
	"supermart-dashboard/internal/handlers"
	"supermart-dashboard/internal/middleware"
	"supermart-dashboard/internal/services"
	"supermart-dashboard/internal/ui/templates"
)

type Server struct {
	analytics    *services.Analytics
	mux          *http.ServeMux
	logger       *slog.Logger
	sessions     *auth.Sessions
	apiHandlers  *handlers.APIHandlers
	pageHandlers *handlers.PageHandlers
	authHandlers *handlers.AuthHandlers
}

func NewServer(analytics *services.Analytics, users *auth.Service, sessions *auth.Sessions, logger *slog.Logger) *Server {
	s := &Server{
		analytics:    analytics,
		mux:          http.NewServeMux(),
		logger:       logger,
		sessions:     sessions,
		apiHandlers:  handlers.NewAPIHandlers(analytics, logger),
		pageHandlers: handlers.NewPageHandlers(analytics, logger),
		authHandlers: handlers.NewAuthHandlers(users, sessions, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	gate := middleware.RequireSession(s.sessions, s.logger)
	private := func(pattern string, h http.HandlerFunc) {
		s.mux.Handle(pattern, gate(h))
	}

	// Public routes
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.Handle("GET /static/", templates.Static())
	s.mux.HandleFunc("GET /login", s.authHandlers.HandleLoginForm)
	s.mux.HandleFunc("POST /login", s.authHandlers.HandleLogin)
	s.mux.HandleFunc("GET /signup", s.authHandlers.HandleSignupForm)
	s.mux.HandleFunc("POST /signup", s.authHandlers.HandleSignup)
	s.mux.HandleFunc("GET /logout", s.authHandlers.HandleLogout)

	private("GET /{$}", s.authHandlers.HandleHome)
	private("GET /admin/stats", s.apiHandlers.HandleStats)

	// Dashboard pages, their Datastar feeds and JSON twins
	for _, page := range handlers.Pages {
		private("GET "+page.Prefix+"{$}", s.pageHandlers.HandleShell(page))
		private("GET "+page.Feed(), s.pageHandlers.HandleFeed(page))
		private("GET /api/"+page.Key, s.pageHandlers.HandleJSON(page))
	}

	// REST API endpoints
	private("GET /api/segments/{category}/{subcategory}", s.apiHandlers.HandleSegment)
	private("GET /api/export.xlsx", s.apiHandlers.HandleExport)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
