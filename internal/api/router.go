package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/geoseek/internal/api/handler"
	"github.com/mcoot/geoseek/internal/api/middleware"
	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/services/registry"
	"github.com/mcoot/geoseek/internal/storage"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	Registry       *registry.Registry
	Storage        storage.Storage
	LateJoinPolicy model.LateJoinPolicy
	// Realtime serves websocket upgrades on /ws
	Realtime http.Handler
	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	sessionHandler := handler.NewSessionHandler(cfg.Registry, cfg.Storage, cfg.LateJoinPolicy, cfg.Logger)
	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Logger)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Session routes
	api.HandleFunc("/sessions", sessionHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/sessions", sessionHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/summary", sessionHandler.Summary).Methods(http.MethodGet)
	api.HandleFunc("/summaries", sessionHandler.ListSummaries).Methods(http.MethodGet)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler.Check).Methods(http.MethodGet)

	// Realtime connections are long-lived; request logging would only fire on close
	if cfg.Realtime != nil {
		r.Handle("/ws", cfg.Realtime).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(r)
}
