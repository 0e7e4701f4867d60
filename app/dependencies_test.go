package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicewire/call-control-plane/config"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/services/connectors"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "development",
		RulesPath:   filepath.Join(t.TempDir(), "routing_rules.yaml"),
		Router: config.RouterConfig{
			ConfidenceFloor:   0.6,
			FallbackMargin:    0.1,
			PriorityWeight:    0.3,
			PerformanceWeight: 0.3,
			CostWeight:        0.2,
			LatencyWeight:     0.2,
			ReferenceCost:     0.01,
			ReferenceLatency:  2 * time.Second,
		},
		Engine: config.EngineConfig{
			CallTimeout:         30 * time.Second,
			ProviderConcurrency: 8,
			ProbeTimeout:        5 * time.Second,
		},
		Session: config.SessionConfig{
			MaxIdle:         30 * time.Minute,
			CleanupInterval: time.Minute,
		},
		Transports: config.TransportsConfig{
			BrowserEnabled: true,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			// keep the default Prometheus registerer clean across tests
			MetricsEnabled: false,
		},
	}
}

// nullConnector is the minimal connector for wiring tests
type nullConnector struct{ name string }

func (n nullConnector) Name() string { return n.name }
func (n nullConnector) SynthesizeConversational(context.Context, *connectors.ConversationRequest) (*connectors.ConversationResult, error) {
	return &connectors.ConversationResult{Text: "ok"}, nil
}
func (n nullConnector) SpeechToText(context.Context, *connectors.TranscriptionRequest) (*connectors.TranscriptionResult, error) {
	return &connectors.TranscriptionResult{}, nil
}
func (n nullConnector) TextToSpeech(context.Context, *connectors.SynthesisRequest) (*connectors.SynthesisResult, error) {
	return &connectors.SynthesisResult{}, nil
}
func (n nullConnector) HealthCheck(context.Context) (*connectors.HealthStatus, error) {
	return &connectors.HealthStatus{Status: "healthy"}, nil
}

func TestNewDependencies(t *testing.T) {
	cfg := testConfig(t)
	logger := zaptest.NewLogger(t)

	deps, err := NewDependencies(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, deps)

	assert.NotNil(t, deps.Config)
	assert.NotNil(t, deps.Logger)
	assert.NotNil(t, deps.Metrics)
	assert.NotNil(t, deps.Registry)
	assert.NotNil(t, deps.Rules)
	assert.NotNil(t, deps.Router)
	assert.NotNil(t, deps.Connectors)
	assert.NotNil(t, deps.Engine)
	assert.NotNil(t, deps.Sessions)
	assert.NotNil(t, deps.Browser)
	assert.Contains(t, deps.Transports.Kinds(), "browser")

	assert.NoError(t, deps.Close(context.Background()))
}

func TestNewDependencies_TelephonyTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transports.TelephonyCallbackBase = "https://bridge.example.com"

	deps, err := NewDependencies(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Contains(t, deps.Transports.Kinds(), "telephony")
}

func TestDependencies_RegisterProvider(t *testing.T) {
	deps, err := NewDependencies(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	err = deps.RegisterProvider(nullConnector{name: "acme"}, []*models.ModelCapability{
		{
			ProviderID:       "acme",
			ModelName:        "acme-conv",
			ModelType:        models.ModelTypeConversational,
			Languages:        []string{"en"},
			PerformanceScore: 0.9,
			LatencyEstimate:  time.Second,
			Healthy:          true,
		},
	})
	require.NoError(t, err)

	assert.True(t, deps.Connectors.Has("acme"))
	assert.Equal(t, 1, deps.Registry.Count())

	// duplicate provider is rejected
	err = deps.RegisterProvider(nullConnector{name: "acme"}, nil)
	assert.Error(t, err)
}

func TestDependencies_CloseEndsActiveSessions(t *testing.T) {
	deps, err := NewDependencies(testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)

	s := deps.Sessions.CreateSession("alice", models.DirectionInbound,
		models.TransportMetadata{Kind: "browser", ConnectionID: "ws-1"}, "en", "")

	transferred := deps.Sessions.CreateSession("bob", models.DirectionInbound,
		models.TransportMetadata{Kind: "browser", ConnectionID: "ws-2"}, "en", "")
	require.NoError(t, deps.Sessions.UpdateStatus(transferred.ID, models.SessionStatusTransferred))

	require.NoError(t, deps.Close(context.Background()))

	for _, id := range []string{s.ID, transferred.ID} {
		got, err := deps.Sessions.GetSession(id)
		require.NoError(t, err)
		assert.True(t, got.Status.IsTerminal(), "shutdown ends non-active retained sessions too")
	}
}
