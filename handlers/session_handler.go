package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/services/session"
	"github.com/voicewire/call-control-plane/utils"
	"go.uber.org/zap"
)

// UpdateStatusBody is the wire shape of PATCH /v1/sessions/{id}/status
type UpdateStatusBody struct {
	Status string `json:"status" validate:"required"`
}

// SessionHandler exposes the session query surface
type SessionHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions *session.Manager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// HandleGetSession handles GET /v1/sessions/{id}
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, err := h.sessions.GetSession(id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, s)
}

// HandleGetByConnection handles GET /v1/sessions/by-connection/{connectionId}
func (h *SessionHandler) HandleGetByConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connectionId")

	s, err := h.sessions.GetSessionByConnectionID(connectionID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, s)
}

// HandleListActive handles GET /v1/sessions
func (h *SessionHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.sessions.ActiveSessions())
}

// HandleUpdateStatus handles PATCH /v1/sessions/{id}/status
func (h *SessionHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body UpdateStatusBody
	if err := decodeJSON(r, &body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.sessions.UpdateStatus(id, models.SessionStatus(body.Status)); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	s, err := h.sessions.GetSession(id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, s)
}

// HandleEndSession handles DELETE /v1/sessions/{id}
func (h *SessionHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.sessions.EndSession(id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("session ended via API", zap.String("session_id", id))
	utils.WriteNoContent(w)
}

// HandleEndByConnection handles DELETE /v1/sessions/by-connection/{connectionId}
func (h *SessionHandler) HandleEndByConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connectionId")

	if err := h.sessions.EndSessionByConnectionID(connectionID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("session ended via API", zap.String("connection_id", connectionID))
	utils.WriteNoContent(w)
}
