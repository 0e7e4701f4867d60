package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutingDecision is the Router's output for one request: which provider and
// model were selected and why. Decisions are created fresh per request and
// never cached or reused across a different (language, dialect, modelType).
type RoutingDecision struct {
	ID uuid.UUID `json:"id"`

	SelectedProvider string    `json:"selected_provider"`
	SelectedModel    string    `json:"selected_model"`
	ModelType        ModelType `json:"model_type"`
	Language         string    `json:"language"`
	Dialect          string    `json:"dialect,omitempty"`

	Confidence       float64       `json:"confidence"`
	EstimatedCost    float64       `json:"estimated_cost"`
	EstimatedLatency time.Duration `json:"estimated_latency"`

	FallbackUsed  bool   `json:"fallback_used"`
	Justification string `json:"justification"`

	CreatedAt time.Time `json:"created_at"`
}
