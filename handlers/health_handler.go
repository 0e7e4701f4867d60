package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/voicewire/call-control-plane/services/orchestrator"
	"github.com/voicewire/call-control-plane/utils"
	"go.uber.org/zap"
)

// HealthProber is the slice of the orchestration engine the health handler uses
type HealthProber interface {
	Health(ctx context.Context) *orchestrator.HealthReport
}

// HealthResponse represents the liveness check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	engine HealthProber
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(engine HealthProber, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		engine: engine,
		logger: logger,
	}
}

// HandleHealth handles GET /health
// Basic liveness check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /health/ready
// Aggregates every provider probe plus capability counts; a degraded plane is
// still ready, a plane with no connectors is not.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	report := h.engine.Health(r.Context())

	if report.Status == "error" {
		h.logger.Warn("readiness check failed", zap.Any("providers", report.Providers))
		_ = utils.WriteServiceUnavailable(w, utils.SuccessResponse{Data: report})
		return
	}

	_ = utils.WriteOK(w, report)
}
