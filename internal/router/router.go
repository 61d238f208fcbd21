package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"contract-ledger/internal/config"
	"contract-ledger/internal/handler"
	"contract-ledger/internal/middleware"
	"contract-ledger/internal/websocket"
)

type Handlers struct {
	Ledger    *handler.LedgerHandler
	Contracts *handler.ContractsHandler
	Docs      *handler.DocsHandler
	Metrics   http.Handler
	// Ready backs /ready; nil reports ready unconditionally.
	Ready func(ctx context.Context) error
}

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	handlers Handlers,
	hub *websocket.Hub,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.RateLimitWriteRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if handlers.Ready != nil {
			if err := handlers.Ready(r.Context()); err != nil {
				slog.Warn("readiness check failed", "error", err)
				http.Error(w, "state store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if handlers.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", handlers.Metrics)
	}
	if handlers.Docs != nil {
		r.Get("/openapi.yaml", handlers.Docs.OpenAPI)
		r.Get("/swagger", handlers.Docs.SwaggerUI)
	}
	if hub != nil {
		r.Get("/ws", hub.Handler(cfg.CORSOrigins))
	}

	write := []func(http.Handler) http.Handler{authMiddleware.RequireAuth}
	if len(cfg.WriteRoles) > 0 {
		write = append(write, authMiddleware.RequireRoles(cfg.WriteRoles...))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Get("/deleted", handlers.Ledger.List)
		api.Get("/deleted/{id}", handlers.Ledger.Get)
		api.With(write...).Post("/deleted", handlers.Ledger.Record)
		api.With(write...).Post("/deleted/{id}/restore", handlers.Ledger.Restore)
		api.With(write...).Delete("/deleted/{id}", handlers.Ledger.Purge)

		api.With(authMiddleware.RequireAuth).Get("/contracts", handlers.Contracts.List)
	})

	return r
}
