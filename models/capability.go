package models

import (
	"time"
)

// ModelType represents the category of AI operation a model performs
type ModelType string

const (
	ModelTypeSpeechToText   ModelType = "speech_to_text"
	ModelTypeTextToSpeech   ModelType = "text_to_speech"
	ModelTypeUnderstanding  ModelType = "understanding"
	ModelTypeConversational ModelType = "conversational"
)

// ValidModelTypes lists every known model type
var ValidModelTypes = []ModelType{
	ModelTypeSpeechToText,
	ModelTypeTextToSpeech,
	ModelTypeUnderstanding,
	ModelTypeConversational,
}

// IsValid reports whether the model type is one of the known categories
func (t ModelType) IsValid() bool {
	switch t {
	case ModelTypeSpeechToText, ModelTypeTextToSpeech, ModelTypeUnderstanding, ModelTypeConversational:
		return true
	}
	return false
}

// ModelCapability represents one (provider, model, modelType) tuple with its
// measured and declared quality, cost and health. Capabilities are mutated only
// by periodic probes or manual override; they are never deleted, only marked
// unhealthy.
type ModelCapability struct {
	ProviderID string    `json:"provider_id"`
	ModelName  string    `json:"model_name"`
	ModelType  ModelType `json:"model_type"`

	// Supported languages and their dialects. An empty dialect list means the
	// language is supported without dialect constraints.
	Languages []string            `json:"languages"`
	Dialects  map[string][]string `json:"dialects,omitempty"`

	// Quality metrics, all in [0, 1] except cost and latency
	PerformanceScore float64       `json:"performance_score"`
	AccuracyScore    float64       `json:"accuracy_score"`
	CostPerRequest   float64       `json:"cost_per_request"`
	LatencyEstimate  time.Duration `json:"latency_estimate"`

	// Health tracking
	Healthy         bool      `json:"healthy"`
	HealthCheckedAt time.Time `json:"health_checked_at"`
}

// SupportsLanguage reports whether the capability covers the given language
func (c *ModelCapability) SupportsLanguage(language string) bool {
	for _, l := range c.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// SupportsDialect reports whether the capability covers the given dialect of a
// language. A language without a declared dialect list accepts any dialect.
func (c *ModelCapability) SupportsDialect(language, dialect string) bool {
	if dialect == "" {
		return c.SupportsLanguage(language)
	}
	if !c.SupportsLanguage(language) {
		return false
	}
	dialects, ok := c.Dialects[language]
	if !ok || len(dialects) == 0 {
		return true
	}
	for _, d := range dialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// Key returns the registry identity of the capability
func (c *ModelCapability) Key() string {
	return c.ProviderID + "/" + c.ModelName
}
