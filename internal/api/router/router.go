// Package router wires the HTTP surface: conversation endpoint, clinic data
// API, web chat, and operational endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/clinic-concierge/internal/api/handlers"
	"github.com/wolfman30/clinic-concierge/internal/webchat"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	ChatHandler    *handlers.ChatHandler
	ClinicHandler  *handlers.ClinicHandler
	WebChatHandler *webchat.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", cfg.ClinicHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", cfg.ChatHandler.Handle)

		api.Route("/patients", func(p chi.Router) {
			p.Get("/", cfg.ClinicHandler.ListPatients)
			p.Post("/", cfg.ClinicHandler.RegisterPatient)
			p.Get("/{patientID}", cfg.ClinicHandler.GetPatient)
		})
		api.Get("/doctors", cfg.ClinicHandler.ListDoctors)
		api.Get("/appointments", cfg.ClinicHandler.ListAppointments)
		api.Get("/stats", cfg.ClinicHandler.Stats)
		api.Post("/cleanup", cfg.ClinicHandler.Cleanup)
	})

	if cfg.WebChatHandler != nil {
		r.Get("/ws/chat", cfg.WebChatHandler.HandleWebSocket)
	}

	return r
}
