package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/voicewire/call-control-plane/services/orchestrator"
	"github.com/voicewire/call-control-plane/utils"
	"go.uber.org/zap"
)

// VoiceEngine is the slice of the orchestration engine the voice handlers use
type VoiceEngine interface {
	ProcessTurn(ctx context.Context, req *orchestrator.TurnRequest) *orchestrator.TurnResponse
	Transcribe(ctx context.Context, req *orchestrator.TranscribeRequest) *orchestrator.TranscribeResponse
	Synthesize(ctx context.Context, req *orchestrator.SynthesizeRequest) *orchestrator.SynthesizeResponse
}

// SessionToucher records activity on a session after a served request
type SessionToucher interface {
	Touch(sessionID string, countTurn bool)
}

// TurnRequestBody is the wire shape of POST /v1/voice/turn
type TurnRequestBody struct {
	SessionID string            `json:"session_id,omitempty"`
	Text      string            `json:"text" validate:"required"`
	Language  string            `json:"language" validate:"required"`
	Dialect   string            `json:"dialect,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// TranscribeRequestBody is the wire shape of POST /v1/voice/transcribe. Audio
// travels base64-encoded.
type TranscribeRequestBody struct {
	SessionID string            `json:"session_id,omitempty"`
	Audio     string            `json:"audio" validate:"required"`
	Language  string            `json:"language" validate:"required"`
	Dialect   string            `json:"dialect,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}

// SynthesizeRequestBody is the wire shape of POST /v1/voice/synthesize
type SynthesizeRequestBody struct {
	SessionID   string            `json:"session_id,omitempty"`
	Text        string            `json:"text" validate:"required"`
	Language    string            `json:"language" validate:"required"`
	Dialect     string            `json:"dialect,omitempty"`
	VoiceConfig map[string]string `json:"voice_config,omitempty"`
}

// SynthesizeResponseBody mirrors the engine's synthesis result with the audio
// base64-encoded for transport.
type SynthesizeResponseBody struct {
	Audio            string                   `json:"audio,omitempty"`
	AudioRef         string                   `json:"audio_ref,omitempty"`
	Format           string                   `json:"format"`
	SampleRate       int                      `json:"sample_rate"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
	AudioDurationMs  int64                    `json:"audio_duration_ms"`
	Cost             float64                  `json:"cost"`
	Routing          orchestrator.RoutingInfo `json:"routing"`
}

// VoiceHandler handles the three voice processing endpoints
type VoiceHandler struct {
	engine   VoiceEngine
	sessions SessionToucher
	logger   *zap.Logger
}

// NewVoiceHandler creates a new VoiceHandler. sessions may be nil when no
// session manager is attached.
func NewVoiceHandler(engine VoiceEngine, sessions SessionToucher, logger *zap.Logger) *VoiceHandler {
	return &VoiceHandler{
		engine:   engine,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleTurn handles POST /v1/voice/turn
func (h *VoiceHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var body TurnRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse turn request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	resp := h.engine.ProcessTurn(r.Context(), &orchestrator.TurnRequest{
		SessionID: body.SessionID,
		Text:      body.Text,
		Language:  body.Language,
		Dialect:   body.Dialect,
		Context:   body.Context,
	})

	h.touch(body.SessionID, true, resp.Routing)

	h.logger.Info("turn processed",
		zap.String("session_id", body.SessionID),
		zap.String("provider", resp.Routing.Provider),
		zap.Bool("fallback_used", resp.Routing.FallbackUsed))

	_ = utils.WriteOK(w, resp)
}

// HandleTranscribe handles POST /v1/voice/transcribe
func (h *VoiceHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	var body TranscribeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse transcribe request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	audio, err := base64.StdEncoding.DecodeString(body.Audio)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Audio must be base64 encoded", nil)
		return
	}

	resp := h.engine.Transcribe(r.Context(), &orchestrator.TranscribeRequest{
		SessionID: body.SessionID,
		Audio:     audio,
		Language:  body.Language,
		Dialect:   body.Dialect,
		Context:   body.Context,
	})

	h.touch(body.SessionID, false, resp.Routing)

	_ = utils.WriteOK(w, resp)
}

// HandleSynthesize handles POST /v1/voice/synthesize
func (h *VoiceHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	var body SynthesizeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse synthesize request", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	resp := h.engine.Synthesize(r.Context(), &orchestrator.SynthesizeRequest{
		SessionID:   body.SessionID,
		Text:        body.Text,
		Language:    body.Language,
		Dialect:     body.Dialect,
		VoiceConfig: body.VoiceConfig,
	})

	h.touch(body.SessionID, false, resp.Routing)

	_ = utils.WriteOK(w, SynthesizeResponseBody{
		Audio:            base64.StdEncoding.EncodeToString(resp.Audio),
		AudioRef:         resp.AudioRef,
		Format:           resp.Format,
		SampleRate:       resp.SampleRate,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		AudioDurationMs:  resp.AudioDurationMs,
		Cost:             resp.Cost,
		Routing:          resp.Routing,
	})
}

// touch records session activity unless the result was discarded
func (h *VoiceHandler) touch(sessionID string, countTurn bool, routing orchestrator.RoutingInfo) {
	if h.sessions == nil || sessionID == "" || routing.Discarded {
		return
	}
	h.sessions.Touch(sessionID, countTurn)
}
