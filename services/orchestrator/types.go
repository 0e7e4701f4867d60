package orchestrator

// ProviderFallback marks a response produced by the engine's fixed fallback
// payload after every provider failed (or none was capable).
const ProviderFallback = "fallback"

// RoutingInfo carries the routing decision fields attached to every engine
// response for observability.
type RoutingInfo struct {
	Provider           string  `json:"provider"`
	Model              string  `json:"model,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`
	EstimatedCost      float64 `json:"estimated_cost,omitempty"`
	EstimatedLatencyMs int64   `json:"estimated_latency_ms,omitempty"`
	FallbackUsed       bool    `json:"fallback_used,omitempty"`
	Justification      string  `json:"justification,omitempty"`

	// FailoverFrom names the first attempted provider when the response came
	// from a later one in the priority list.
	FailoverFrom  string `json:"failover_from,omitempty"`
	FailoverError string `json:"failover_error,omitempty"`

	// Error carries the captured error text when Provider is "fallback"
	Error string `json:"error,omitempty"`

	// Discarded is set when the session ended while the call was in flight;
	// the payload fields are zeroed and must not be delivered.
	Discarded bool `json:"discarded,omitempty"`
}

// TurnRequest is one conversational turn
type TurnRequest struct {
	SessionID string            `json:"session_id,omitempty"`
	Text      string            `json:"text" validate:"required"`
	Language  string            `json:"language" validate:"required"`
	Dialect   string            `json:"dialect,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// TurnResponse is the engine's reply for one conversational turn. It is
// always structurally valid, even on total failure.
type TurnResponse struct {
	Text             string      `json:"text"`
	Confidence       float64     `json:"confidence"`
	Language         string      `json:"language"`
	Dialect          string      `json:"dialect,omitempty"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	Cost             float64     `json:"cost"`
	Routing          RoutingInfo `json:"routing"`
}

// TranscribeRequest carries one audio chunk for transcription
type TranscribeRequest struct {
	SessionID string            `json:"session_id,omitempty"`
	Audio     []byte            `json:"audio" validate:"required"`
	Language  string            `json:"language" validate:"required"`
	Dialect   string            `json:"dialect,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// TranscribeResponse is the engine's transcription result
type TranscribeResponse struct {
	Text             string      `json:"text"`
	Confidence       float64     `json:"confidence"`
	Language         string      `json:"language"`
	Dialect          string      `json:"dialect,omitempty"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	AudioDurationMs  int64       `json:"audio_duration_ms"`
	Cost             float64     `json:"cost"`
	Routing          RoutingInfo `json:"routing"`
}

// SynthesizeRequest carries text for speech synthesis
type SynthesizeRequest struct {
	SessionID   string            `json:"session_id,omitempty"`
	Text        string            `json:"text" validate:"required"`
	Language    string            `json:"language" validate:"required"`
	Dialect     string            `json:"dialect,omitempty"`
	VoiceConfig map[string]string `json:"voice_config,omitempty"`
}

// SynthesizeResponse is the engine's synthesis result
type SynthesizeResponse struct {
	Audio            []byte      `json:"audio,omitempty"`
	AudioRef         string      `json:"audio_ref,omitempty"`
	Format           string      `json:"format"`
	SampleRate       int         `json:"sample_rate"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	AudioDurationMs  int64       `json:"audio_duration_ms"`
	Cost             float64     `json:"cost"`
	Routing          RoutingInfo `json:"routing"`
}

// ProviderHealth is one provider's aggregated probe result
type ProviderHealth struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// HealthReport aggregates every connector probe plus router-level capability
// counts into one status object.
type HealthReport struct {
	Status       string                    `json:"status"`
	Providers    map[string]ProviderHealth `json:"providers"`
	Capabilities map[string]CapabilityInfo `json:"capabilities"`
}

// CapabilityInfo summarizes registry contents for one model type
type CapabilityInfo struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
}

// attemptOutcome is the internal result variant of the failover loop: either a
// success carrying the payload, or exhaustion carrying the last error. The
// conversion to the fixed fallback payload happens only at the engine's outer
// boundary.
type attemptOutcome struct {
	ok      bool
	payload interface{}

	provider      string
	failoverFrom  string
	failoverError error

	lastErr error
}
