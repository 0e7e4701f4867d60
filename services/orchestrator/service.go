package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/observability"
	"github.com/voicewire/call-control-plane/services"
	"github.com/voicewire/call-control-plane/services/connectors"
	"github.com/voicewire/call-control-plane/services/registry"
	"github.com/voicewire/call-control-plane/services/routing"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// FallbackText is the apologetic reply returned when every conversational
// provider failed.
const FallbackText = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."

// Config holds the engine's invocation limits
type Config struct {
	// CallTimeout bounds every connector call; expiry takes the same failover
	// path as a returned error.
	CallTimeout time.Duration

	// ProviderConcurrency caps concurrent outbound calls per provider so one
	// slow backend cannot stall unrelated sessions.
	ProviderConcurrency int64

	// ProbeTimeout bounds each connector health probe
	ProbeTimeout time.Duration
}

// DefaultConfig returns the engine's default limits
func DefaultConfig() Config {
	return Config{
		CallTimeout:         30 * time.Second,
		ProviderConcurrency: 8,
		ProbeTimeout:        5 * time.Second,
	}
}

// SessionGuard lets the engine check whether a session is still live before
// delivering a result. The session manager implements it.
type SessionGuard interface {
	IsLive(sessionID string) bool
}

// Engine wraps the router and the connector registry for the three request
// families. It never raises to its caller: every operation returns a
// structurally valid response, falling back to a fixed safe payload when all
// providers fail.
type Engine struct {
	config     Config
	router     *routing.Router
	connectors *connectors.Registry
	registry   *registry.Registry
	guard      SessionGuard
	metrics    *observability.Metrics
	logger     *zap.Logger

	semMu sync.Mutex
	sems  map[string]*semaphore.Weighted
}

// NewEngine creates the orchestration engine. guard may be nil when no
// session manager is attached (results are then always delivered).
func NewEngine(
	config Config,
	router *routing.Router,
	conns *connectors.Registry,
	reg *registry.Registry,
	guard SessionGuard,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		config:     config,
		router:     router,
		connectors: conns,
		registry:   reg,
		guard:      guard,
		metrics:    metrics,
		logger:     logger,
		sems:       make(map[string]*semaphore.Weighted),
	}
}

// ProcessTurn handles one conversational turn
func (e *Engine) ProcessTurn(ctx context.Context, req *TurnRequest) *TurnResponse {
	decision, err := e.route(req.Language, req.Dialect, models.ModelTypeConversational, req.Context)
	if err != nil {
		return e.fallbackTurn(req, err)
	}

	connReq := &connectors.ConversationRequest{
		Text:     req.Text,
		Language: req.Language,
		Dialect:  req.Dialect,
		Model:    decision.SelectedModel,
		Context:  req.Context,
	}

	outcome := e.attempt(ctx, decision, models.ModelTypeConversational,
		func(ctx context.Context, c connectors.Connector) (interface{}, error) {
			return c.SynthesizeConversational(ctx, connReq)
		})
	if !outcome.ok {
		return e.fallbackTurn(req, outcome.lastErr)
	}

	if e.discarded(req.SessionID) {
		return &TurnResponse{
			Language: req.Language,
			Dialect:  req.Dialect,
			Routing:  e.discardedInfo(outcome),
		}
	}

	result := outcome.payload.(*connectors.ConversationResult)
	return &TurnResponse{
		Text:             result.Text,
		Confidence:       result.Confidence,
		Language:         result.Language,
		Dialect:          result.Dialect,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Cost:             result.Cost,
		Routing:          e.routingInfo(decision, outcome),
	}
}

// Transcribe handles one speech-to-text request
func (e *Engine) Transcribe(ctx context.Context, req *TranscribeRequest) *TranscribeResponse {
	decision, err := e.route(req.Language, req.Dialect, models.ModelTypeSpeechToText, req.Context)
	if err != nil {
		return e.fallbackTranscribe(req, err)
	}

	connReq := &connectors.TranscriptionRequest{
		Audio:    req.Audio,
		Language: req.Language,
		Dialect:  req.Dialect,
		Model:    decision.SelectedModel,
		Context:  req.Context,
	}

	outcome := e.attempt(ctx, decision, models.ModelTypeSpeechToText,
		func(ctx context.Context, c connectors.Connector) (interface{}, error) {
			return c.SpeechToText(ctx, connReq)
		})
	if !outcome.ok {
		return e.fallbackTranscribe(req, outcome.lastErr)
	}

	if e.discarded(req.SessionID) {
		return &TranscribeResponse{
			Language: req.Language,
			Dialect:  req.Dialect,
			Routing:  e.discardedInfo(outcome),
		}
	}

	result := outcome.payload.(*connectors.TranscriptionResult)
	return &TranscribeResponse{
		Text:             result.Text,
		Confidence:       result.Confidence,
		Language:         result.Language,
		Dialect:          result.Dialect,
		ProcessingTimeMs: result.ProcessingTimeMs,
		AudioDurationMs:  result.AudioDurationMs,
		Cost:             result.Cost,
		Routing:          e.routingInfo(decision, outcome),
	}
}

// Synthesize handles one text-to-speech request
func (e *Engine) Synthesize(ctx context.Context, req *SynthesizeRequest) *SynthesizeResponse {
	decision, err := e.route(req.Language, req.Dialect, models.ModelTypeTextToSpeech, nil)
	if err != nil {
		return e.fallbackSynthesize(req, err)
	}

	connReq := &connectors.SynthesisRequest{
		Text:        req.Text,
		Language:    req.Language,
		Dialect:     req.Dialect,
		Model:       decision.SelectedModel,
		VoiceConfig: req.VoiceConfig,
	}

	outcome := e.attempt(ctx, decision, models.ModelTypeTextToSpeech,
		func(ctx context.Context, c connectors.Connector) (interface{}, error) {
			return c.TextToSpeech(ctx, connReq)
		})
	if !outcome.ok {
		return e.fallbackSynthesize(req, outcome.lastErr)
	}

	if e.discarded(req.SessionID) {
		return &SynthesizeResponse{
			Format:  fallbackAudioFormat,
			Routing: e.discardedInfo(outcome),
		}
	}

	result := outcome.payload.(*connectors.SynthesisResult)
	return &SynthesizeResponse{
		Audio:            result.Audio,
		AudioRef:         result.AudioRef,
		Format:           result.Format,
		SampleRate:       result.SampleRate,
		ProcessingTimeMs: result.ProcessingTimeMs,
		AudioDurationMs:  result.AudioDurationMs,
		Cost:             result.Cost,
		Routing:          e.routingInfo(decision, outcome),
	}
}

// Health aggregates every registered connector's self-reported probe plus
// registry capability counts into one status object. A probe error becomes
// status=error for that provider, never a propagated failure.
func (e *Engine) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Providers:    make(map[string]ProviderHealth),
		Capabilities: make(map[string]CapabilityInfo),
	}

	allHealthy := true
	for _, provider := range e.connectors.Providers() {
		conn, err := e.connectors.Get(provider)
		if err != nil {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, e.config.ProbeTimeout)
		status, err := conn.HealthCheck(probeCtx)
		cancel()

		if err != nil {
			e.logger.Warn("connector health probe failed",
				zap.String("provider", provider), zap.Error(err))
			report.Providers[provider] = ProviderHealth{Status: "error", Detail: err.Error()}
			allHealthy = false
			continue
		}

		report.Providers[provider] = ProviderHealth{
			Status:         status.Status,
			ResponseTimeMs: status.ResponseTimeMs,
			Detail:         status.Detail,
		}
		if status.Status != "healthy" {
			allHealthy = false
		}
	}

	for modelType, counts := range e.registry.CountByType() {
		report.Capabilities[string(modelType)] = CapabilityInfo{
			Total:   counts.Total,
			Healthy: counts.Healthy,
		}
	}

	switch {
	case e.connectors.Count() == 0:
		report.Status = "error"
	case allHealthy:
		report.Status = "healthy"
	default:
		report.Status = "degraded"
	}
	return report
}

// route asks the router for a decision and records it
func (e *Engine) route(language, dialect string, modelType models.ModelType, reqContext map[string]string) (*models.RoutingDecision, error) {
	decision, err := e.router.Route(routing.Request{
		Language:  language,
		Dialect:   dialect,
		ModelType: modelType,
		Context:   reqContext,
	})
	if err != nil {
		e.logger.Warn("routing failed",
			zap.String("model_type", string(modelType)),
			zap.String("language", language),
			zap.Error(err))
		return nil, err
	}

	e.metrics.RoutingDecisions.WithLabelValues(
		string(modelType), decision.SelectedProvider, boolLabel(decision.FallbackUsed)).Inc()
	return decision, nil
}

// attempt runs the failover loop: the selected provider first, then every
// remaining provider in the rule's priority list that is registered and
// healthy, skipping ones already tried. The returned variant is either a
// success carrying the payload or exhaustion carrying the last error.
func (e *Engine) attempt(
	ctx context.Context,
	decision *models.RoutingDecision,
	modelType models.ModelType,
	invoke func(context.Context, connectors.Connector) (interface{}, error),
) attemptOutcome {
	order := e.attemptOrder(decision, modelType)

	var firstErr error
	var lastErr error

	for i, provider := range order {
		conn, err := e.connectors.Get(provider)
		if err != nil {
			lastErr = services.NewDomainError(services.ErrorTypeProviderInvocation,
				fmt.Sprintf("no connector registered for provider %s", provider), err)
			if firstErr == nil {
				firstErr = lastErr
			}
			continue
		}

		payload, err := e.invokeWithLimits(ctx, provider, conn, invoke)
		if err != nil {
			e.logger.Warn("provider call failed, trying next in priority order",
				zap.String("provider", provider),
				zap.String("model_type", string(modelType)),
				zap.Int("attempt", i+1),
				zap.Error(err))
			lastErr = err
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		out := attemptOutcome{ok: true, payload: payload, provider: provider}
		if provider != order[0] {
			out.failoverFrom = order[0]
			out.failoverError = firstErr
			e.metrics.Failovers.WithLabelValues(string(modelType), order[0]).Inc()
			e.logger.Info("request served after failover",
				zap.String("from", order[0]),
				zap.String("to", provider),
				zap.String("model_type", string(modelType)))
		}
		return out
	}

	if lastErr == nil {
		lastErr = services.ErrProvidersExhausted
	}
	return attemptOutcome{lastErr: lastErr}
}

// attemptOrder builds the provider try-order for one request: the routed
// provider first, then the rule's remaining priority providers that are
// registered and still have a healthy capability of the right type.
func (e *Engine) attemptOrder(decision *models.RoutingDecision, modelType models.ModelType) []string {
	rule := e.router.ResolveRule(decision.Language, decision.Dialect, modelType)

	order := []string{decision.SelectedProvider}
	seen := map[string]bool{decision.SelectedProvider: true}

	for _, provider := range rule.PriorityProviders {
		if seen[provider] {
			continue
		}
		seen[provider] = true
		if !e.connectors.Has(provider) {
			continue
		}
		if !e.providerHealthy(provider, modelType) {
			continue
		}
		order = append(order, provider)
	}
	return order
}

// providerHealthy reports whether the provider still has at least one healthy
// capability of the given model type.
func (e *Engine) providerHealthy(provider string, modelType models.ModelType) bool {
	for _, cap := range e.registry.Lookup(modelType) {
		if cap.ProviderID == provider && cap.Healthy {
			return true
		}
	}
	return false
}

// invokeWithLimits runs one connector call under the per-provider concurrency
// cap and the mandatory timeout. A timeout takes the same failover path as
// any other invocation error.
func (e *Engine) invokeWithLimits(
	ctx context.Context,
	provider string,
	conn connectors.Connector,
	invoke func(context.Context, connectors.Connector) (interface{}, error),
) (interface{}, error) {
	sem := e.providerSemaphore(provider)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, services.WrapInvocation(
			fmt.Sprintf("waiting for provider %s slot", provider), err)
	}
	defer sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	start := time.Now()
	payload, err := invoke(callCtx, conn)
	elapsed := time.Since(start)

	if err != nil {
		e.metrics.ProviderCalls.WithLabelValues(provider, "error").Observe(elapsed.Seconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.NewDomainError(services.ErrorTypeProviderInvocation,
				fmt.Sprintf("provider %s timed out after %s", provider, e.config.CallTimeout), err)
		}
		return nil, services.WrapInvocation(fmt.Sprintf("provider %s call failed", provider), err)
	}

	e.metrics.ProviderCalls.WithLabelValues(provider, "success").Observe(elapsed.Seconds())
	return payload, nil
}

func (e *Engine) providerSemaphore(provider string) *semaphore.Weighted {
	e.semMu.Lock()
	defer e.semMu.Unlock()

	sem, ok := e.sems[provider]
	if !ok {
		sem = semaphore.NewWeighted(e.config.ProviderConcurrency)
		e.sems[provider] = sem
	}
	return sem
}

// discarded reports whether a result for the session must be dropped because
// the call already ended while the provider call was in flight.
func (e *Engine) discarded(sessionID string) bool {
	if sessionID == "" || e.guard == nil {
		return false
	}
	if e.guard.IsLive(sessionID) {
		return false
	}
	e.logger.Info("discarding result for ended session", zap.String("session_id", sessionID))
	return true
}

func (e *Engine) routingInfo(decision *models.RoutingDecision, outcome attemptOutcome) RoutingInfo {
	info := RoutingInfo{
		Provider:           outcome.provider,
		Model:              decision.SelectedModel,
		Confidence:         decision.Confidence,
		EstimatedCost:      decision.EstimatedCost,
		EstimatedLatencyMs: decision.EstimatedLatency.Milliseconds(),
		FallbackUsed:       decision.FallbackUsed,
		Justification:      decision.Justification,
	}
	if outcome.failoverFrom != "" {
		info.FailoverFrom = outcome.failoverFrom
		if outcome.failoverError != nil {
			info.FailoverError = outcome.failoverError.Error()
		}
	}
	return info
}

func (e *Engine) discardedInfo(outcome attemptOutcome) RoutingInfo {
	return RoutingInfo{Provider: outcome.provider, Discarded: true}
}

const fallbackAudioFormat = "pcm"

func (e *Engine) fallbackTurn(req *TurnRequest, cause error) *TurnResponse {
	e.metrics.FallbackPayloads.WithLabelValues(string(models.ModelTypeConversational)).Inc()
	return &TurnResponse{
		Text:     FallbackText,
		Language: req.Language,
		Dialect:  req.Dialect,
		Routing:  fallbackInfo(cause),
	}
}

func (e *Engine) fallbackTranscribe(req *TranscribeRequest, cause error) *TranscribeResponse {
	e.metrics.FallbackPayloads.WithLabelValues(string(models.ModelTypeSpeechToText)).Inc()
	return &TranscribeResponse{
		Text:     "",
		Language: req.Language,
		Dialect:  req.Dialect,
		Routing:  fallbackInfo(cause),
	}
}

func (e *Engine) fallbackSynthesize(req *SynthesizeRequest, cause error) *SynthesizeResponse {
	e.metrics.FallbackPayloads.WithLabelValues(string(models.ModelTypeTextToSpeech)).Inc()
	return &SynthesizeResponse{
		Audio:      nil,
		Format:     fallbackAudioFormat,
		SampleRate: 8000,
		Routing:    fallbackInfo(cause),
	}
}

func fallbackInfo(cause error) RoutingInfo {
	info := RoutingInfo{Provider: ProviderFallback}
	if cause != nil {
		info.Error = cause.Error()
	}
	return info
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
