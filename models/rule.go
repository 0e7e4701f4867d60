package models

// DialectWildcard matches any dialect in a routing rule
const DialectWildcard = "*"

// LanguageWildcard matches any language in a routing rule
const LanguageWildcard = "*"

// RoutingRule describes the ordered provider preference and constraints for one
// (language, dialect-or-wildcard, modelType) key. Rules are immutable after load.
type RoutingRule struct {
	Language  string    `json:"language" yaml:"language" validate:"required"`
	Dialect   string    `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	ModelType ModelType `json:"model_type" yaml:"model_type" validate:"required"`

	PriorityProviders    []string `json:"priority_providers" yaml:"priority_providers" validate:"required,min=1"`
	FallbackEnabled      bool     `json:"fallback_enabled" yaml:"fallback_enabled"`
	PerformanceThreshold float64  `json:"performance_threshold" yaml:"performance_threshold" validate:"gte=0,lte=1"`

	// CostLimit caps the per-request cost of eligible capabilities. Zero means
	// no cost constraint.
	CostLimit float64 `json:"cost_limit,omitempty" yaml:"cost_limit,omitempty" validate:"gte=0"`
}

// Key returns the lookup key of the rule. A missing dialect is stored as the
// wildcard.
func (r *RoutingRule) Key() string {
	dialect := r.Dialect
	if dialect == "" {
		dialect = DialectWildcard
	}
	return r.Language + ":" + dialect + ":" + string(r.ModelType)
}

// PriorityIndex returns the position of a provider in the rule's preference
// order, or -1 when the provider is not listed.
func (r *RoutingRule) PriorityIndex(providerID string) int {
	for i, p := range r.PriorityProviders {
		if p == providerID {
			return i
		}
	}
	return -1
}
