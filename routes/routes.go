package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voicewire/call-control-plane/app"
	"github.com/voicewire/call-control-plane/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.Engine, deps.Logger)
	voiceHandler := handlers.NewVoiceHandler(deps.Engine, deps.Sessions, deps.Logger)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Logger)
	capabilityHandler := handlers.NewCapabilityHandler(deps.Registry, deps.Logger)
	transportHandler := handlers.NewTransportHandler(deps.Transports, deps.Sessions, deps.Browser, deps.Logger)

	// Health check endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/voice", func(r chi.Router) {
			r.Post("/turn", voiceHandler.HandleTurn)
			r.Post("/transcribe", voiceHandler.HandleTranscribe)
			r.Post("/synthesize", voiceHandler.HandleSynthesize)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.HandleListActive)
			r.Get("/{id}", sessionHandler.HandleGetSession)
			r.Delete("/{id}", sessionHandler.HandleEndSession)
			r.Patch("/{id}/status", sessionHandler.HandleUpdateStatus)
			r.Get("/by-connection/{connectionId}", sessionHandler.HandleGetByConnection)
			r.Delete("/by-connection/{connectionId}", sessionHandler.HandleEndByConnection)
		})

		r.Route("/capabilities", func(r chi.Router) {
			r.Get("/", capabilityHandler.HandleList)
			r.Patch("/health", capabilityHandler.HandleMarkHealth)
		})

		r.Route("/transports", func(r chi.Router) {
			r.Post("/{kind}/events", transportHandler.HandleEvent)
			r.Get("/browser/ws", transportHandler.HandleBrowserSocket)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
