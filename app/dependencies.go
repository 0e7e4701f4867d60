package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/voicewire/call-control-plane/config"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/observability"
	"github.com/voicewire/call-control-plane/services/connectors"
	"github.com/voicewire/call-control-plane/services/orchestrator"
	"github.com/voicewire/call-control-plane/services/registry"
	"github.com/voicewire/call-control-plane/services/routing"
	"github.com/voicewire/call-control-plane/services/rules"
	"github.com/voicewire/call-control-plane/services/session"
	"github.com/voicewire/call-control-plane/services/transport"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies. This is the central wiring
// point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Core
	Registry   *registry.Registry
	Rules      *rules.Table
	Router     *routing.Router
	Connectors *connectors.Registry
	Engine     *orchestrator.Engine

	// Sessions and transports
	Transports *transport.Registry
	Browser    *transport.BrowserConnector
	Sessions   *session.Manager
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	} else {
		deps.Metrics = observability.NewTestMetrics()
	}

	deps.Registry = registry.New()
	deps.Connectors = connectors.NewRegistry()

	deps.Rules = rules.NewTable(cfg.RulesPath, logger)
	if err := deps.Rules.Load(); err != nil {
		// Load degrades to defaults internally; an error here is unexpected
		return nil, fmt.Errorf("failed to load routing rules: %w", err)
	}

	deps.Router = routing.NewRouter(cfg.RoutingConfig(), deps.Registry, deps.Rules, logger)

	if err := deps.initTransports(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize transports: %w", err)
	}

	deps.Sessions = session.NewManager(deps.Transports, deps.Metrics, logger)

	deps.Engine = orchestrator.NewEngine(
		cfg.EngineSettings(),
		deps.Router,
		deps.Connectors,
		deps.Registry,
		deps.Sessions,
		deps.Metrics,
		logger,
	)

	logger.Info("all dependencies initialized",
		zap.String("rules_path", cfg.RulesPath),
		zap.Strings("transports", deps.Transports.Kinds()))
	return deps, nil
}

// initTransports registers the configured transport adapters
func (d *Dependencies) initTransports(cfg *config.Config) error {
	d.Transports = transport.NewRegistry()

	if cfg.Transports.BrowserEnabled {
		d.Browser = transport.NewBrowserConnector(d.Logger)
		if err := d.Transports.Register(d.Browser); err != nil {
			return err
		}
		d.Logger.Info("registered browser transport")
	}

	if cfg.Transports.TelephonyCallbackBase != "" {
		telephony := transport.NewTelephonyConnector(cfg.Transports.TelephonyCallbackBase, d.Logger)
		if err := d.Transports.Register(telephony); err != nil {
			return err
		}
		d.Logger.Info("registered telephony transport",
			zap.String("callback_base", cfg.Transports.TelephonyCallbackBase))
	}

	if len(d.Transports.Kinds()) == 0 {
		d.Logger.Warn("no transport adapters configured")
	}
	return nil
}

// RegisterProvider attaches an AI backend: its connector plus the capabilities
// it serves. Connector implementations live outside this module.
func (d *Dependencies) RegisterProvider(conn connectors.Connector, capabilities []*models.ModelCapability) error {
	if err := d.Connectors.Register(conn); err != nil {
		return fmt.Errorf("failed to register connector %s: %w", conn.Name(), err)
	}
	for _, capability := range capabilities {
		if err := d.Registry.Register(capability); err != nil {
			return fmt.Errorf("failed to register capability %s: %w", capability.Key(), err)
		}
	}
	d.Logger.Info("provider registered",
		zap.String("provider", conn.Name()),
		zap.Int("capabilities", len(capabilities)))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	if n := d.Sessions.EndAll(); n > 0 {
		d.Logger.Info("ended sessions during shutdown", zap.Int("count", n))
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
	return nil
}
