// Package server wires the HTTP surface: the versioned REST API, the
// per-project WebSocket feeds, health, and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/veritrail/veritrail/internal/api/ws"
	"github.com/veritrail/veritrail/internal/config"
	"github.com/veritrail/veritrail/internal/directory"
	"github.com/veritrail/veritrail/internal/entitystore"
	"github.com/veritrail/veritrail/internal/obs"
	"github.com/veritrail/veritrail/internal/server/middleware"
	redisstore "github.com/veritrail/veritrail/internal/store/redis"
	"github.com/veritrail/veritrail/internal/trace"
)

// Deps bundles the collaborators of the Server.
type Deps struct {
	Store     *entitystore.Store
	Audit     *entitystore.AuditReader
	Engine    *trace.Engine
	Directory *directory.Service
	PubSub    *redisstore.PubSub
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the lifetime of the
// middleware housekeeping goroutines, not of the server itself.
func New(ctx context.Context, cfg *config.Config, d Deps) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(obs.Instrument)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	hub := ws.NewHub(d.PubSub)

	s := &Server{
		router: router,
		wsHub:  hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	authn := middleware.Auth(cfg.JWT.Secret, d.Directory)
	rateLimit := middleware.RateLimit(ctx, 100, 200)

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Authenticated tenant-scoped group for all regular endpoints.
	// 2. Admin-only group for operator actions (tenant provisioning).
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.RequireTenant())
			r.Use(rateLimit)

			apiConfig := huma.DefaultConfig("VeriTrail API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, d, cfg)
		})

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Use(middleware.RequireAdmin())
			r.Use(rateLimit)

			// The tenant group already serves the OpenAPI document; a second
			// one here would collide on the docs routes.
			adminConfig := huma.DefaultConfig("VeriTrail Admin API", "1.0.0")
			adminConfig.DocsPath = ""
			adminConfig.OpenAPIPath = ""
			adminConfig.SchemasPath = ""
			admin := humachi.New(r, adminConfig)
			registerAdminRoutes(admin, d)
		})
	})

	// WebSocket live feeds.
	router.Route("/ws", func(r chi.Router) {
		r.Use(authn)
		r.Use(middleware.RequireTenant())
		registerWSRoutes(r, hub)
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus metrics (unauthenticated; expected to be firewalled).
	router.Handle("/metrics", obs.Handler())

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
