package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/voicewire/call-control-plane/models"
)

var (
	// ErrTransportNotFound is returned when no connector is registered for a
	// transport kind
	ErrTransportNotFound = errors.New("transport connector not found")

	// ErrTransportAlreadyRegistered is returned when registering a duplicate
	// transport connector
	ErrTransportAlreadyRegistered = errors.New("transport connector already registered")

	// ErrEventInvalid is returned for a malformed inbound event; the event is
	// dropped before any session is created
	ErrEventInvalid = errors.New("transport event invalid")
)

// CallData is the normalized view of one inbound transport event. Every
// adapter maps its wire format into these fields.
type CallData struct {
	ConnectionID  string               `json:"connection_id"`
	CallerAddress string               `json:"caller_address"`
	Direction     models.CallDirection `json:"direction"`

	// Status is the coarse call state reported by the transport, e.g.
	// "ringing", "in-progress", "completed"
	Status string `json:"status"`

	LanguageHint string `json:"language_hint,omitempty"`
	DialectHint  string `json:"dialect_hint,omitempty"`
}

// Response is the payload an adapter delivers back over its channel. Text and
// Audio may both be set; the adapter decides what its channel can carry.
type Response struct {
	Text        string            `json:"text,omitempty"`
	Audio       []byte            `json:"-"`
	AudioFormat string            `json:"audio_format,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Connector is the contract each transport adapter (telephony bridge, SIP
// gateway, browser real-time link) implements. The session manager consumes
// it without knowing the transport kind.
type Connector interface {
	// Kind returns the transport kind this adapter serves, matching
	// TransportMetadata.Kind
	Kind() string

	// Validate checks a raw inbound event; an error means the event is
	// malformed and must be dropped before session creation
	Validate(raw []byte) error

	// ExtractCallData normalizes a validated event
	ExtractCallData(raw []byte) (*CallData, error)

	// SendResponse delivers a response over the session's connection
	SendResponse(ctx context.Context, session *models.CallSession, resp *Response) error

	// EndCall tears down the session's connection
	EndCall(ctx context.Context, session *models.CallSession) error
}

// Registry maps transport kinds to their adapters so the session manager can
// find the owning connector for any session.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry creates an empty transport registry
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
	}
}

// Register adds an adapter under its kind
func (r *Registry) Register(c Connector) error {
	if c == nil {
		return errors.New("transport connector cannot be nil")
	}
	kind := c.Kind()
	if kind == "" {
		return errors.New("transport kind cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[kind]; exists {
		return ErrTransportAlreadyRegistered
	}
	r.connectors[kind] = c
	return nil
}

// Get retrieves the adapter for a transport kind
func (r *Registry) Get(kind string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.connectors[kind]
	if !exists {
		return nil, ErrTransportNotFound
	}
	return c, nil
}

// Kinds returns every registered transport kind
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.connectors))
	for kind := range r.connectors {
		out = append(out, kind)
	}
	return out
}
