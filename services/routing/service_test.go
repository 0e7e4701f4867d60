package routing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/services"
	"github.com/voicewire/call-control-plane/services/registry"
	"github.com/voicewire/call-control-plane/services/rules"
	"go.uber.org/zap"
)

type capOption func(*models.ModelCapability)

func withScore(score float64) capOption {
	return func(c *models.ModelCapability) { c.PerformanceScore = score }
}

func withCost(cost float64) capOption {
	return func(c *models.ModelCapability) { c.CostPerRequest = cost }
}

func withLatency(d time.Duration) capOption {
	return func(c *models.ModelCapability) { c.LatencyEstimate = d }
}

func withHealth(healthy bool) capOption {
	return func(c *models.ModelCapability) { c.Healthy = healthy }
}

func withLanguages(langs ...string) capOption {
	return func(c *models.ModelCapability) { c.Languages = langs }
}

func addCapability(t *testing.T, reg *registry.Registry, provider string, opts ...capOption) {
	t.Helper()
	cap := &models.ModelCapability{
		ProviderID:       provider,
		ModelName:        provider + "-chat",
		ModelType:        models.ModelTypeConversational,
		Languages:        []string{"en", "ml"},
		PerformanceScore: 0.8,
		CostPerRequest:   0.002,
		LatencyEstimate:  400 * time.Millisecond,
		Healthy:          true,
	}
	for _, opt := range opts {
		opt(cap)
	}
	require.NoError(t, reg.Register(cap))
}

// emptyTable returns a rule table with nothing loaded, so every lookup falls
// through to the router's permissive default.
func emptyTable(t *testing.T) *rules.Table {
	t.Helper()
	return rules.NewTable(filepath.Join(t.TempDir(), "unused.yaml"), zap.NewNop())
}

func newRouter(t *testing.T, reg *registry.Registry, table *rules.Table) *Router {
	t.Helper()
	return NewRouter(DefaultConfig(), reg, table, zap.NewNop())
}

func loadedTable(t *testing.T, content string) *rules.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	table := rules.NewTable(path, zap.NewNop())
	require.NoError(t, table.Load())
	return table
}

func TestRouter_Route_InputValidation(t *testing.T) {
	router := newRouter(t, registry.New(), emptyTable(t))

	_, err := router.Route(Request{Language: "", ModelType: models.ModelTypeConversational})
	assert.True(t, services.IsValidationError(err))

	_, err = router.Route(Request{Language: "en", ModelType: models.ModelType("bogus")})
	assert.True(t, services.IsValidationError(err))
}

func TestRouter_Route_NoCapableProvider(t *testing.T) {
	reg := registry.New()
	router := newRouter(t, reg, emptyTable(t))

	_, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	assert.True(t, services.IsNoCapableProviderError(err))
}

func TestRouter_Route_UnhealthyNeverSelected(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme", withHealth(false), withScore(0.99))
	addCapability(t, reg, "beta", withScore(0.4))
	router := newRouter(t, reg, emptyTable(t))

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "beta", decision.SelectedProvider)

	// with the only healthy capability gone there is nothing left
	require.NoError(t, reg.MarkHealth("beta", "beta-chat", false))
	_, err = router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	assert.True(t, services.IsNoCapableProviderError(err))
}

func TestRouter_Route_ScenarioA_ThresholdBeforeScoring(t *testing.T) {
	// rule {ml, conversational, [A,B], fallback on, threshold 0.7}; A scores 0.5,
	// B scores 0.9. A must be excluded by the threshold filter before scoring,
	// so B wins with fallback_used=false: threshold filtering and score-based
	// fallback are distinct mechanisms.
	reg := registry.New()
	addCapability(t, reg, "provider-a", withScore(0.5))
	addCapability(t, reg, "provider-b", withScore(0.9))

	table := loadedTable(t, `
rules:
  - language: ml
    model_type: conversational
    priority_providers: [provider-a, provider-b]
    fallback_enabled: true
    performance_threshold: 0.7
`)
	router := newRouter(t, reg, table)

	decision, err := router.Route(Request{Language: "ml", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "provider-b", decision.SelectedProvider)
	assert.False(t, decision.FallbackUsed)
}

func TestRouter_Route_PriorityOrderWins(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme", withScore(0.8))
	addCapability(t, reg, "beta", withScore(0.8))

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [beta, acme]
    performance_threshold: 0.5
`)
	router := newRouter(t, reg, table)

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "beta", decision.SelectedProvider, "first priority provider should outscore equals")
	assert.False(t, decision.FallbackUsed)
}

func TestRouter_Route_Determinism(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme")
	addCapability(t, reg, "beta")
	addCapability(t, reg, "gamma")

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [acme, beta, gamma]
    performance_threshold: 0.1
`)
	router := newRouter(t, reg, table)
	req := Request{Language: "en", Dialect: "en-US", ModelType: models.ModelTypeConversational}

	first, err := router.Route(req)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		decision, err := router.Route(req)
		require.NoError(t, err)
		assert.Equal(t, first.SelectedProvider, decision.SelectedProvider)
		assert.Equal(t, first.SelectedModel, decision.SelectedModel)
		assert.Equal(t, first.Confidence, decision.Confidence)
		assert.NotEqual(t, first.ID, decision.ID, "decisions are created fresh per request")
	}
}

func TestRouter_Route_CostLimitFilter(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "pricey", withCost(0.5))
	addCapability(t, reg, "budget", withCost(0.001))

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [pricey, budget]
    performance_threshold: 0.1
    cost_limit: 0.01
`)
	router := newRouter(t, reg, table)

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "budget", decision.SelectedProvider)
}

func TestRouter_Route_DialectFilter(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme", func(c *models.ModelCapability) {
		c.Dialects = map[string][]string{"en": {"en-GB"}}
	})
	addCapability(t, reg, "beta")

	router := newRouter(t, reg, emptyTable(t))

	decision, err := router.Route(Request{
		Language: "en", Dialect: "en-US", ModelType: models.ModelTypeConversational,
	})
	require.NoError(t, err)
	assert.Equal(t, "beta", decision.SelectedProvider)
}

func TestRouter_Route_LanguageFilter(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme", withLanguages("fr"))
	router := newRouter(t, reg, emptyTable(t))

	_, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	assert.True(t, services.IsNoCapableProviderError(err))
}

func TestRouter_Route_FallbackOutsidePriorityList(t *testing.T) {
	// the lone priority provider is weak; a much stronger capability outside
	// the list displaces it when fallback is enabled
	reg := registry.New()
	addCapability(t, reg, "weak", withScore(0.1), withCost(0.009), withLatency(1900*time.Millisecond))
	addCapability(t, reg, "strong", withScore(1.0), withCost(0.0001), withLatency(50*time.Millisecond))

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [weak]
    fallback_enabled: true
    performance_threshold: 0
`)
	router := newRouter(t, reg, table)

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "strong", decision.SelectedProvider)
	assert.True(t, decision.FallbackUsed)
	assert.Contains(t, decision.Justification, "confidence floor")
}

func TestRouter_Route_FallbackDisabledKeepsPrimary(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "weak", withScore(0.1), withCost(0.009), withLatency(1900*time.Millisecond))
	addCapability(t, reg, "strong", withScore(1.0), withCost(0.0001), withLatency(50*time.Millisecond))

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [weak]
    fallback_enabled: false
    performance_threshold: 0
`)
	router := newRouter(t, reg, table)

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "weak", decision.SelectedProvider)
	assert.False(t, decision.FallbackUsed)
}

func TestRouter_Route_NoPriorityProviderEligible(t *testing.T) {
	// the rule names providers with no registered capability; the filtered set
	// still has a healthy candidate, which is selected as a fallback
	reg := registry.New()
	addCapability(t, reg, "gamma")

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [acme, beta]
    fallback_enabled: true
    performance_threshold: 0.1
`)
	router := newRouter(t, reg, table)

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "gamma", decision.SelectedProvider)
	assert.True(t, decision.FallbackUsed)
}

func TestRouter_Route_MissingRuleUsesPermissiveDefault(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme", withScore(0.05))
	router := newRouter(t, reg, emptyTable(t))

	// no rule table entries at all: the permissive default admits the weak
	// capability and selection still succeeds
	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.Equal(t, "acme", decision.SelectedProvider)
}

func TestRouter_ResolveRule(t *testing.T) {
	reg := registry.New()
	addCapability(t, reg, "acme")

	table := loadedTable(t, `
rules:
  - language: en
    model_type: conversational
    priority_providers: [beta]
    performance_threshold: 0.3
`)
	router := newRouter(t, reg, table)

	t.Run("loaded rule returned as-is", func(t *testing.T) {
		rule := router.ResolveRule("en", "", models.ModelTypeConversational)
		assert.Equal(t, []string{"beta"}, rule.PriorityProviders)
	})

	t.Run("missing rule yields permissive default over registry providers", func(t *testing.T) {
		rule := router.ResolveRule("fr", "", models.ModelTypeConversational)
		assert.Equal(t, []string{"acme"}, rule.PriorityProviders)
		assert.Zero(t, rule.PerformanceThreshold)
		assert.True(t, rule.FallbackEnabled)
	})
}

func TestRouter_ScoreClamping(t *testing.T) {
	reg := registry.New()
	// absurd cost and latency push sub-scores negative before clamping
	addCapability(t, reg, "acme", withCost(5.0), withLatency(30*time.Second))
	router := newRouter(t, reg, emptyTable(t))

	decision, err := router.Route(Request{Language: "en", ModelType: models.ModelTypeConversational})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, decision.Confidence, 0.0)
	assert.LessOrEqual(t, decision.Confidence, 1.0)
}
