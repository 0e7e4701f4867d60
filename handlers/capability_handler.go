package handlers

import (
	"errors"
	"net/http"

	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/services/registry"
	"github.com/voicewire/call-control-plane/utils"
	"go.uber.org/zap"
)

// MarkHealthBody is the wire shape of PATCH /v1/capabilities/health, the
// manual health override.
type MarkHealthBody struct {
	ProviderID string `json:"provider_id" validate:"required"`
	ModelName  string `json:"model_name" validate:"required"`
	Healthy    *bool  `json:"healthy" validate:"required"`
}

// CapabilityHandler exposes the capability registry surface
type CapabilityHandler struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// NewCapabilityHandler creates a new CapabilityHandler
func NewCapabilityHandler(reg *registry.Registry, logger *zap.Logger) *CapabilityHandler {
	return &CapabilityHandler{
		registry: reg,
		logger:   logger,
	}
}

// HandleList handles GET /v1/capabilities. An optional model_type query
// parameter narrows the listing.
func (h *CapabilityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("model_type"); raw != "" {
		modelType := models.ModelType(raw)
		if !modelType.IsValid() {
			_ = utils.WriteBadRequest(w, "unknown model type", map[string]interface{}{
				"model_type": raw,
			})
			return
		}
		_ = utils.WriteOK(w, h.registry.Lookup(modelType))
		return
	}

	all := make([]*models.ModelCapability, 0)
	for _, modelType := range models.ValidModelTypes {
		all = append(all, h.registry.Lookup(modelType)...)
	}
	_ = utils.WriteOK(w, all)
}

// HandleMarkHealth handles PATCH /v1/capabilities/health
func (h *CapabilityHandler) HandleMarkHealth(w http.ResponseWriter, r *http.Request) {
	var body MarkHealthBody
	if err := decodeJSON(r, &body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.registry.MarkHealth(body.ProviderID, body.ModelName, *body.Healthy); err != nil {
		if errors.Is(err, registry.ErrCapabilityNotFound) {
			_ = utils.WriteNotFound(w, err.Error())
			return
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("capability health overridden",
		zap.String("provider", body.ProviderID),
		zap.String("model", body.ModelName),
		zap.Bool("healthy", *body.Healthy))
	utils.WriteNoContent(w)
}
