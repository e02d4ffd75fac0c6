// Package server exposes the JSON API, health checks and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/cesto-ofertas-go/internal/account"
	"github.com/user/cesto-ofertas-go/internal/broadcast"
	"github.com/user/cesto-ofertas-go/internal/catalog"
	"github.com/user/cesto-ofertas-go/internal/config"
	"github.com/user/cesto-ofertas-go/internal/media"
	"github.com/user/cesto-ofertas-go/internal/push"
	"github.com/user/cesto-ofertas-go/internal/scheduler"
	"github.com/user/cesto-ofertas-go/internal/sendlog"
	"github.com/user/cesto-ofertas-go/internal/store"
)

// Services are the domain services the API delegates to
type Services struct {
	Accounts  *account.Service
	Products  *catalog.Catalog
	Configs   *broadcast.Registry
	Push      *push.Service
	Logs      *sendlog.Log
	Videos    *media.Library
	Scheduler *scheduler.Scheduler // optional
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Scheduler string `json:"scheduler,omitempty"`
	Uptime    string `json:"uptime"`
}

// Server handles HTTP requests
type Server struct {
	store     store.Store
	svc       Services
	config    *config.ServerConfig
	router    chi.Router
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(s store.Store, svc Services, cfg *config.ServerConfig) *Server {
	srv := &Server{
		store:     s,
		svc:       svc,
		config:    cfg,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	srv.setupRoutes()
	return srv
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Post("/auth/sign-in", s.handleSignIn)
		r.Post("/auth/sign-up", s.handleSignUp)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/sign-out", s.handleSignOut)
			r.Get("/me", s.handleMe)

			r.Get("/onboarding", s.handleOnboardingProgress)
			r.Post("/onboarding/profile", s.handleSubmitProfile)
			r.Post("/onboarding/codes", s.handleDispatchCodes)
			r.Post("/onboarding/confirm", s.handleConfirmCodes)

			r.Group(func(r chi.Router) {
				r.Use(s.requireOnboarded)

				r.Route("/products", func(r chi.Router) {
					r.Get("/", s.handleListProducts)
					r.Post("/", s.handleCreateProduct)
					r.Post("/import", s.handleImportProduct)
					r.Put("/{id}", s.handleUpdateProduct)
					r.Delete("/{id}", s.handleDeleteProduct)
					r.Post("/{id}/toggle", s.handleToggleProduct)
					r.Put("/{id}/active", s.handleSetProductActive)
				})

				r.Route("/configs", func(r chi.Router) {
					r.Get("/", s.handleListConfigs)
					r.Post("/", s.handleCreateConfig)
					r.Put("/{id}", s.handleUpdateConfig)
					r.Delete("/{id}", s.handleDeleteConfig)
					r.Post("/{id}/toggle", s.handleToggleConfig)
					r.Put("/{id}/active", s.handleSetConfigActive)
					r.Post("/{id}/send", s.handleSendConfig)
				})

				r.Post("/preview", s.handlePreview)
				r.Get("/logs", s.handleListLogs)

				r.Route("/videos", func(r chi.Router) {
					r.Get("/", s.handleListVideos)
					r.Post("/", s.handleCreateVideo)
					r.Delete("/{id}", s.handleDeleteVideo)
					r.Get("/{id}/download", s.handleDownloadVideo)
				})

				r.Get("/admin/stats", s.handleStats)
				r.Get("/admin/users", s.handleListUsers)
				r.Post("/admin/scheduler/run", s.handleRunScheduler)
			})
		})
	})
}

// Start begins listening on the configured port
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", s.config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports store connectivity and uptime
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "healthy"
	if err := s.store.Ping(r.Context()); err != nil {
		storeStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	status := "healthy"
	code := http.StatusOK
	if storeStatus != "healthy" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status: status,
		Store:  storeStatus,
		Uptime: s.Uptime().Round(time.Second).String(),
	}
	if s.svc.Scheduler != nil {
		resp.Scheduler = "idle"
		if s.svc.Scheduler.IsRunning() {
			resp.Scheduler = "running"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
	}
}

// Uptime returns the time since the server was created
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
