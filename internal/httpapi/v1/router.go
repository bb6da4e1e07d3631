// Package v1 wires the HTTP surface of the fuel split service.
// Handlers stay thin and delegate ledger rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tinoosan/fuelsplit/internal/service/fuel"
)

// Options tune the HTTP surface.
type Options struct {
	// CORSOrigins enables CORS for the listed browser origins.
	CORSOrigins []string
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// Ready are pinged by /readyz.
	Ready []ReadyChecker
}

// Server wires handlers and middleware using Chi.
type Server struct {
	svc    fuel.Service
	codes  CodeResolver
	tokens TokenIssuer
	fmt    fuel.Formatter
	opts   Options
	log    *slog.Logger
	rt     *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc fuel.Service, codes CodeResolver, tokens TokenIssuer, f fuel.Formatter, opts Options, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s := &Server{
		svc:    svc,
		codes:  codes,
		tokens: tokens,
		fmt:    f,
		opts:   opts,
		log:    logger,
		rt:     r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	s.rt.With(s.validateSession()).Post("/v1/session", s.createSession)
	s.rt.Delete("/v1/session", s.deleteSession)

	s.rt.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/v1/session", s.getSession)
		r.Get("/v1/ledger", s.getLedger)
		r.Get("/v1/ledger/history", s.getHistory)
		r.With(s.validateReading()).Post("/v1/readings", s.postReading)
		r.Post("/v1/readings/undo", s.undoReading)
		r.Post("/v1/settlements", s.postSettlement)
		r.With(s.validateSettings()).Put("/v1/settings", s.putSettings)
	})

	// Health (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
