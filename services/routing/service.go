package routing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/services"
	"github.com/voicewire/call-control-plane/services/registry"
	"github.com/voicewire/call-control-plane/services/rules"
	"go.uber.org/zap"
)

// Config holds the router's scoring knobs. The constants are deliberately
// configuration rather than literals so operators can tune them without a
// rebuild.
type Config struct {
	// ConfidenceFloor is the absolute score below which a primary selection is
	// eligible to be displaced by a fallback candidate.
	ConfidenceFloor float64

	// FallbackMargin is how much a fallback candidate must beat the primary's
	// score by before the router switches to it.
	FallbackMargin float64

	// Scoring weights. They should sum to 1.
	PriorityWeight    float64
	PerformanceWeight float64
	CostWeight        float64
	LatencyWeight     float64

	// ReferenceCost is the per-request cost treated as "fully inefficient"
	// when a rule carries no cost limit.
	ReferenceCost float64

	// ReferenceLatency is the latency treated as "fully inefficient".
	ReferenceLatency time.Duration
}

// DefaultConfig returns the router's default scoring configuration
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor:   0.6,
		FallbackMargin:    0.1,
		PriorityWeight:    0.3,
		PerformanceWeight: 0.3,
		CostWeight:        0.2,
		LatencyWeight:     0.2,
		ReferenceCost:     0.01,
		ReferenceLatency:  2 * time.Second,
	}
}

// Request describes one routing request
type Request struct {
	Language  string
	Dialect   string
	ModelType models.ModelType
	Context   map[string]string
}

// Router resolves a rule, filters the registry, scores the candidates and
// picks one. It never calls a provider.
type Router struct {
	config   Config
	registry *registry.Registry
	table    *rules.Table
	logger   *zap.Logger
}

// NewRouter creates a router over a capability registry and rule table
func NewRouter(config Config, reg *registry.Registry, table *rules.Table, logger *zap.Logger) *Router {
	return &Router{
		config:   config,
		registry: reg,
		table:    table,
		logger:   logger,
	}
}

// scoredCandidate pairs a capability with its computed score
type scoredCandidate struct {
	cap           *models.ModelCapability
	score         float64
	priorityIndex int
}

// Route picks the best capability for the request. It returns
// ErrNoCapableProvider when nothing passes the filter; any internal data
// problem degrades to the permissive default rule instead of failing.
func (r *Router) Route(req Request) (*models.RoutingDecision, error) {
	if req.Language == "" {
		return nil, services.ErrInvalidLanguage
	}
	if !req.ModelType.IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation,
			fmt.Sprintf("invalid model type %q", req.ModelType), nil)
	}

	rule := r.ResolveRule(req.Language, req.Dialect, req.ModelType)

	candidates := r.filterCandidates(rule, req)
	if len(candidates) == 0 {
		return nil, services.ErrNoCapableProvider
	}

	scored := make([]scoredCandidate, len(candidates))
	for i, cap := range candidates {
		scored[i] = scoredCandidate{
			cap:           cap,
			score:         r.score(rule, cap),
			priorityIndex: rule.PriorityIndex(cap.ProviderID),
		}
	}

	selected, fallbackUsed, justification := r.pick(rule, scored)

	decision := &models.RoutingDecision{
		ID:               uuid.New(),
		SelectedProvider: selected.cap.ProviderID,
		SelectedModel:    selected.cap.ModelName,
		ModelType:        req.ModelType,
		Language:         req.Language,
		Dialect:          req.Dialect,
		Confidence:       selected.score,
		EstimatedCost:    selected.cap.CostPerRequest,
		EstimatedLatency: selected.cap.LatencyEstimate,
		FallbackUsed:     fallbackUsed,
		Justification:    justification,
		CreatedAt:        time.Now(),
	}

	r.logger.Debug("routing decision",
		zap.String("decision_id", decision.ID.String()),
		zap.String("provider", decision.SelectedProvider),
		zap.String("model", decision.SelectedModel),
		zap.String("model_type", string(req.ModelType)),
		zap.Float64("confidence", decision.Confidence),
		zap.Bool("fallback_used", decision.FallbackUsed))

	return decision, nil
}

// ResolveRule looks up the routing rule for a request, substituting the
// hardcoded permissive default when the table has no match or the matched
// rule is unusable.
func (r *Router) ResolveRule(language, dialect string, modelType models.ModelType) *models.RoutingRule {
	rule := r.table.FindRule(language, dialect, modelType)
	if rule == nil || len(rule.PriorityProviders) == 0 {
		if rule != nil {
			r.logger.Warn("matched rule has no priority providers, degrading to permissive default",
				zap.String("rule", rule.Key()))
		}
		return rules.PermissiveDefault(language, dialect, modelType, r.registry.Providers())
	}
	return rule
}

// filterCandidates applies the rule's constraints to the registry snapshot.
// An unhealthy capability is never a candidate regardless of its score.
func (r *Router) filterCandidates(rule *models.RoutingRule, req Request) []*models.ModelCapability {
	var out []*models.ModelCapability
	for _, cap := range r.registry.Lookup(req.ModelType) {
		if !cap.Healthy {
			continue
		}
		if cap.PerformanceScore < rule.PerformanceThreshold {
			continue
		}
		if rule.CostLimit > 0 && cap.CostPerRequest > rule.CostLimit {
			continue
		}
		if !cap.SupportsLanguage(req.Language) {
			continue
		}
		if req.Dialect != "" && !cap.SupportsDialect(req.Language, req.Dialect) {
			continue
		}
		out = append(out, cap)
	}
	return out
}

// score computes the weighted candidate score, each sub-score normalized to
// [0,1] and the total clamped to [0,1].
func (r *Router) score(rule *models.RoutingRule, cap *models.ModelCapability) float64 {
	priority := 0.0
	if idx := rule.PriorityIndex(cap.ProviderID); idx >= 0 {
		priority = 1 - float64(idx)/float64(len(rule.PriorityProviders))
	}

	performance := clamp01(cap.PerformanceScore)

	ceiling := rule.CostLimit
	if ceiling <= 0 {
		ceiling = r.config.ReferenceCost
	}
	costEfficiency := clamp01(1 - cap.CostPerRequest/ceiling)

	latencyEfficiency := 0.0
	if r.config.ReferenceLatency > 0 {
		latencyEfficiency = clamp01(1 - float64(cap.LatencyEstimate)/float64(r.config.ReferenceLatency))
	}

	total := r.config.PriorityWeight*priority +
		r.config.PerformanceWeight*performance +
		r.config.CostWeight*costEfficiency +
		r.config.LatencyWeight*latencyEfficiency

	return clamp01(total)
}

// pick chooses the winning candidate. The primary is the top scorer among
// candidates named in the rule's priority list; a candidate outside that list
// can displace a weak primary when fallback is enabled. Ties keep the earlier
// candidate in registry order, so a fixed snapshot always yields the same
// decision.
func (r *Router) pick(rule *models.RoutingRule, scored []scoredCandidate) (scoredCandidate, bool, string) {
	var primary *scoredCandidate
	var bestOutside *scoredCandidate

	for i := range scored {
		c := &scored[i]
		if c.priorityIndex >= 0 {
			if primary == nil || c.score > primary.score {
				primary = c
			}
		} else {
			if bestOutside == nil || c.score > bestOutside.score {
				bestOutside = c
			}
		}
	}

	if primary == nil {
		// nothing from the priority list survived the filter; the best of the
		// remaining capability set is a fallback by definition
		return *bestOutside, true, fmt.Sprintf(
			"no priority provider eligible; selected %s from capability set (score %.3f)",
			bestOutside.cap.ProviderID, bestOutside.score)
	}

	if rule.FallbackEnabled && primary.score < r.config.ConfidenceFloor &&
		bestOutside != nil && bestOutside.score > primary.score+r.config.FallbackMargin {
		return *bestOutside, true, fmt.Sprintf(
			"primary %s scored %.3f below confidence floor %.2f; fallback %s scored %.3f",
			primary.cap.ProviderID, primary.score, r.config.ConfidenceFloor,
			bestOutside.cap.ProviderID, bestOutside.score)
	}

	return *primary, false, fmt.Sprintf(
		"selected %s (priority #%d, score %.3f)",
		primary.cap.ProviderID, primary.priorityIndex+1, primary.score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
