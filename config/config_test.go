package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "routing_rules.yaml", cfg.RulesPath)
				assert.Equal(t, 0.6, cfg.Router.ConfidenceFloor)
				assert.Equal(t, 0.1, cfg.Router.FallbackMargin)
				assert.Equal(t, 30*time.Second, cfg.Engine.CallTimeout)
				assert.Equal(t, 30*time.Minute, cfg.Session.MaxIdle)
				assert.True(t, cfg.Transports.BrowserEnabled)
			},
		},
		{
			name: "router weight overrides",
			envVars: map[string]string{
				"ROUTER_PRIORITY_WEIGHT":    "0.5",
				"ROUTER_PERFORMANCE_WEIGHT": "0.5",
				"ROUTER_COST_WEIGHT":        "0",
				"ROUTER_LATENCY_WEIGHT":     "0",
				"ROUTER_CONFIDENCE_FLOOR":   "0.8",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 0.5, cfg.Router.PriorityWeight)
				assert.Equal(t, 0.8, cfg.Router.ConfidenceFloor)
				routing := cfg.RoutingConfig()
				assert.Equal(t, 0.5, routing.PriorityWeight)
				assert.Equal(t, 0.8, routing.ConfidenceFloor)
			},
		},
		{
			name: "engine and session overrides",
			envVars: map[string]string{
				"ENGINE_CALL_TIMEOUT":         "10s",
				"ENGINE_PROVIDER_CONCURRENCY": "2",
				"SESSION_MAX_IDLE":            "5m",
				"SESSION_CLEANUP_INTERVAL":    "30s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 10*time.Second, cfg.Engine.CallTimeout)
				assert.Equal(t, int64(2), cfg.Engine.ProviderConcurrency)
				assert.Equal(t, 5*time.Minute, cfg.Session.MaxIdle)
				assert.Equal(t, 30*time.Second, cfg.Session.CleanupInterval)

				engine := cfg.EngineSettings()
				assert.Equal(t, 10*time.Second, engine.CallTimeout)
			},
		},
		{
			name: "observability configuration",
			envVars: map[string]string{
				"LOG_LEVEL":       "debug",
				"LOG_FORMAT":      "text",
				"METRICS_ENABLED": "false",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Observability.LogLevel)
				assert.Equal(t, "text", cfg.Observability.LogFormat)
				assert.False(t, cfg.Observability.MetricsEnabled)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT default",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"PORT":        "9443",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "SERVER_PORT env var when PORT not set",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "telephony callback base",
			envVars: map[string]string{
				"TELEPHONY_CALLBACK_BASE": "https://bridge.example.com",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://bridge.example.com", cfg.Transports.TelephonyCallbackBase)
			},
		},
		{
			name: "zero score weights rejected",
			envVars: map[string]string{
				"ROUTER_PRIORITY_WEIGHT":    "0",
				"ROUTER_PERFORMANCE_WEIGHT": "0",
				"ROUTER_COST_WEIGHT":        "0",
				"ROUTER_LATENCY_WEIGHT":     "0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			RulesPath:   "routing_rules.yaml",
			Router: RouterConfig{
				PriorityWeight:    0.3,
				PerformanceWeight: 0.3,
				CostWeight:        0.2,
				LatencyWeight:     0.2,
			},
			Engine:        EngineConfig{ProviderConcurrency: 8},
			Session:       SessionConfig{MaxIdle: 30 * time.Minute},
			Observability: ObservabilityConfig{LogLevel: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing rules path", func(c *Config) { c.RulesPath = "" }, "routing rules path"},
		{"missing log level", func(c *Config) { c.Observability.LogLevel = "" }, "log level"},
		{"zero concurrency", func(c *Config) { c.Engine.ProviderConcurrency = 0 }, "provider concurrency"},
		{"zero max idle", func(c *Config) { c.Session.MaxIdle = 0 }, "max idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"dev", "dev", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}

	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "TEST_INT", "42", 10, 42},
		{"empty value", "TEST_INT", "", 10, 10},
		{"invalid int", "TEST_INT", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsInt(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"valid duration", "TEST_DURATION", "30s", 10 * time.Second, 30 * time.Second},
		{"empty value", "TEST_DURATION", "", 10 * time.Second, 10 * time.Second},
		{"invalid duration", "TEST_DURATION", "not-a-duration", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
			}
			got := getEnvAsDuration(tt.key, tt.defaultValue)
			assert.Equal(t, tt.want, got)
		})
	}
}
