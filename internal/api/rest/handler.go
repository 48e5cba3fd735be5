// Package rest exposes the HTTP API: the detection webhook, the threat and
// action read surface, and health.
package rest

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sentinelforge/sentinelforge-backend/internal/api/middleware"
	"github.com/sentinelforge/sentinelforge-backend/internal/api/websocket"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
	"github.com/sentinelforge/sentinelforge-backend/internal/service"
)

const apiVersion = "1.0.0"

// Handler carries the pipeline services behind the HTTP surface.
type Handler struct {
	store       repository.Store
	processor   *service.FalcoProcessor
	detector    *service.AnomalyDetector
	policy      service.Policy
	remediation *service.RemediationService
	explain     *service.ExplainService
	ws          *websocket.Handler
	log         *slog.Logger
}

// NewHandler creates the REST handler.
func NewHandler(
	store repository.Store,
	processor *service.FalcoProcessor,
	detector *service.AnomalyDetector,
	policy service.Policy,
	remediation *service.RemediationService,
	explain *service.ExplainService,
	ws *websocket.Handler,
	log *slog.Logger,
) *Handler {
	return &Handler{
		store:       store,
		processor:   processor,
		detector:    detector,
		policy:      policy,
		remediation: remediation,
		explain:     explain,
		ws:          ws,
		log:         log,
	}
}

// SetupRoutes registers all routes on the router.
func (h *Handler) SetupRoutes(r *mux.Router) {
	r.Use(middleware.Recover)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLog)

	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/falco/webhook", h.FalcoWebhook).Methods(http.MethodPost)
	api.HandleFunc("/simulate", h.Simulate).Methods(http.MethodPost)

	api.HandleFunc("/threats", h.ListThreats).Methods(http.MethodGet)
	api.HandleFunc("/threats/{id}", h.GetThreat).Methods(http.MethodGet)
	api.HandleFunc("/threats/{id}/resolve", h.ResolveThreat).Methods(http.MethodPost)

	api.HandleFunc("/actions", h.ListActions).Methods(http.MethodGet)
	api.HandleFunc("/actions/{id}", h.GetAction).Methods(http.MethodGet)

	api.HandleFunc("/explain/{id}", h.ExplainThreat).Methods(http.MethodGet)
	api.HandleFunc("/stream", h.ws.ServeWS)
}
