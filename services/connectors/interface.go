package connectors

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrConnectorNotFound is returned when no connector is registered for a provider
	ErrConnectorNotFound = errors.New("connector not found")

	// ErrConnectorAlreadyRegistered is returned when registering a duplicate connector
	ErrConnectorAlreadyRegistered = errors.New("connector already registered")
)

// Connector is the uniform interface every AI backend adapter implements. The
// core consumes it; the concrete network clients live outside this module.
type Connector interface {
	// Name returns the provider id this connector serves
	Name() string

	// SynthesizeConversational generates the next conversational turn
	SynthesizeConversational(ctx context.Context, req *ConversationRequest) (*ConversationResult, error)

	// SpeechToText transcribes audio
	SpeechToText(ctx context.Context, req *TranscriptionRequest) (*TranscriptionResult, error)

	// TextToSpeech renders text as audio
	TextToSpeech(ctx context.Context, req *SynthesisRequest) (*SynthesisResult, error)

	// HealthCheck probes the backend
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// ConversationRequest carries one conversational turn to a backend
type ConversationRequest struct {
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Dialect  string            `json:"dialect,omitempty"`
	Model    string            `json:"model,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// ConversationResult is the backend's reply for one turn
type ConversationResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	Language         string  `json:"language"`
	Dialect          string  `json:"dialect,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	Cost             float64 `json:"cost"`
}

// TranscriptionRequest carries audio to a speech-to-text backend
type TranscriptionRequest struct {
	Audio    []byte            `json:"-"`
	Language string            `json:"language"`
	Dialect  string            `json:"dialect,omitempty"`
	Model    string            `json:"model,omitempty"`
	Context  map[string]string `json:"context,omitempty"`
}

// TranscriptionResult is the transcript for one audio chunk
type TranscriptionResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	Language         string  `json:"language"`
	Dialect          string  `json:"dialect,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	AudioDurationMs  int64   `json:"audio_duration_ms"`
	Cost             float64 `json:"cost"`
}

// SynthesisRequest carries text to a text-to-speech backend
type SynthesisRequest struct {
	Text        string            `json:"text"`
	Language    string            `json:"language"`
	Dialect     string            `json:"dialect,omitempty"`
	Model       string            `json:"model,omitempty"`
	VoiceConfig map[string]string `json:"voice_config,omitempty"`
}

// SynthesisResult is the rendered audio. Either Audio or AudioRef is set.
type SynthesisResult struct {
	Audio            []byte  `json:"-"`
	AudioRef         string  `json:"audio_ref,omitempty"`
	Format           string  `json:"format"`
	SampleRate       int     `json:"sample_rate"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`
	AudioDurationMs  int64   `json:"audio_duration_ms"`
	Cost             float64 `json:"cost"`
}

// HealthStatus is a connector's self-reported probe result
type HealthStatus struct {
	Status         string        `json:"status"` // "healthy", "degraded", "error"
	ResponseTimeMs int64         `json:"response_time_ms"`
	CheckedAt      time.Time     `json:"checked_at"`
	Detail         string        `json:"detail,omitempty"`
	Latency        time.Duration `json:"-"`
}

// Registry maps provider ids to their connector implementations. Connectors
// are registered once at startup; lookups afterwards are read-only.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	order      []string
}

// NewRegistry creates an empty connector registry
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
	}
}

// Register adds a connector under its provider id
func (r *Registry) Register(c Connector) error {
	if c == nil {
		return errors.New("connector cannot be nil")
	}
	name := c.Name()
	if name == "" {
		return errors.New("connector name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[name]; exists {
		return ErrConnectorAlreadyRegistered
	}
	r.connectors[name] = c
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a connector by provider id
func (r *Registry) Get(providerID string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.connectors[providerID]
	if !exists {
		return nil, ErrConnectorNotFound
	}
	return c, nil
}

// Has reports whether a connector is registered for the provider
func (r *Registry) Has(providerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.connectors[providerID]
	return exists
}

// Providers returns every registered provider id in registration order
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered connectors
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connectors)
}
