package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/voicewire/call-control-plane/services/orchestrator"
	"github.com/voicewire/call-control-plane/services/routing"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Router        RouterConfig
	Engine        EngineConfig
	Session       SessionConfig
	Transports    TransportsConfig
	Observability ObservabilityConfig
	RulesPath     string
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RouterConfig holds the routing score weights and thresholds
type RouterConfig struct {
	ConfidenceFloor   float64
	FallbackMargin    float64
	PriorityWeight    float64
	PerformanceWeight float64
	CostWeight        float64
	LatencyWeight     float64
	ReferenceCost     float64
	ReferenceLatency  time.Duration
}

// EngineConfig holds the orchestration engine limits
type EngineConfig struct {
	CallTimeout         time.Duration
	ProviderConcurrency int64
	ProbeTimeout        time.Duration
}

// SessionConfig holds session expiry settings
type SessionConfig struct {
	MaxIdle         time.Duration
	CleanupInterval time.Duration
}

// TransportsConfig holds transport adapter settings
type TransportsConfig struct {
	TelephonyCallbackBase string
	BrowserEnabled        bool
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Router: RouterConfig{
			ConfidenceFloor:   getEnvAsFloat("ROUTER_CONFIDENCE_FLOOR", 0.6),
			FallbackMargin:    getEnvAsFloat("ROUTER_FALLBACK_MARGIN", 0.1),
			PriorityWeight:    getEnvAsFloat("ROUTER_PRIORITY_WEIGHT", 0.3),
			PerformanceWeight: getEnvAsFloat("ROUTER_PERFORMANCE_WEIGHT", 0.3),
			CostWeight:        getEnvAsFloat("ROUTER_COST_WEIGHT", 0.2),
			LatencyWeight:     getEnvAsFloat("ROUTER_LATENCY_WEIGHT", 0.2),
			ReferenceCost:     getEnvAsFloat("ROUTER_REFERENCE_COST", 0.01),
			ReferenceLatency:  getEnvAsDuration("ROUTER_REFERENCE_LATENCY", 2*time.Second),
		},
		Engine: EngineConfig{
			CallTimeout:         getEnvAsDuration("ENGINE_CALL_TIMEOUT", 30*time.Second),
			ProviderConcurrency: int64(getEnvAsInt("ENGINE_PROVIDER_CONCURRENCY", 8)),
			ProbeTimeout:        getEnvAsDuration("ENGINE_PROBE_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			MaxIdle:         getEnvAsDuration("SESSION_MAX_IDLE", 30*time.Minute),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", time.Minute),
		},
		Transports: TransportsConfig{
			TelephonyCallbackBase: getEnv("TELEPHONY_CALLBACK_BASE", ""),
			BrowserEnabled:        getEnvAsBool("BROWSER_TRANSPORT_ENABLED", true),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		RulesPath: getEnv("ROUTING_RULES_PATH", "routing_rules.yaml"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.RulesPath == "" {
		return fmt.Errorf("routing rules path is required")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	weights := c.Router.PriorityWeight + c.Router.PerformanceWeight +
		c.Router.CostWeight + c.Router.LatencyWeight
	if weights <= 0 {
		return fmt.Errorf("router score weights must sum to a positive value")
	}
	if c.Engine.ProviderConcurrency < 1 {
		return fmt.Errorf("engine provider concurrency must be at least 1")
	}
	if c.Session.MaxIdle <= 0 {
		return fmt.Errorf("session max idle must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// RoutingConfig maps the env-driven settings onto the router's config
func (c *Config) RoutingConfig() routing.Config {
	return routing.Config{
		ConfidenceFloor:   c.Router.ConfidenceFloor,
		FallbackMargin:    c.Router.FallbackMargin,
		PriorityWeight:    c.Router.PriorityWeight,
		PerformanceWeight: c.Router.PerformanceWeight,
		CostWeight:        c.Router.CostWeight,
		LatencyWeight:     c.Router.LatencyWeight,
		ReferenceCost:     c.Router.ReferenceCost,
		ReferenceLatency:  c.Router.ReferenceLatency,
	}
}

// EngineSettings maps the env-driven settings onto the engine's config
func (c *Config) EngineSettings() orchestrator.Config {
	return orchestrator.Config{
		CallTimeout:         c.Engine.CallTimeout,
		ProviderConcurrency: c.Engine.ProviderConcurrency,
		ProbeTimeout:        c.Engine.ProbeTimeout,
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
