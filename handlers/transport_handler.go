package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/services"
	"github.com/voicewire/call-control-plane/services/session"
	"github.com/voicewire/call-control-plane/services/transport"
	"github.com/voicewire/call-control-plane/utils"
	"go.uber.org/zap"
)

// statusTransitions maps coarse transport statuses onto session lifecycle
// statuses. Unlisted statuses only refresh activity.
var statusTransitions = map[string]models.SessionStatus{
	"answered":    models.SessionStatusConnected,
	"in-progress": models.SessionStatusConnected,
	"active":      models.SessionStatusActive,
	"hold":        models.SessionStatusHold,
	"transferred": models.SessionStatusTransferred,
	"failed":      models.SessionStatusFailed,
}

// TransportHandler normalizes inbound transport events into session operations
type TransportHandler struct {
	transports *transport.Registry
	sessions   *session.Manager
	browser    *transport.BrowserConnector
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewTransportHandler creates a new TransportHandler. browser may be nil when
// the browser transport is disabled.
func NewTransportHandler(transports *transport.Registry, sessions *session.Manager, browser *transport.BrowserConnector, logger *zap.Logger) *TransportHandler {
	return &TransportHandler{
		transports: transports,
		sessions:   sessions,
		browser:    browser,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// HandleEvent handles POST /v1/transports/{kind}/events. A malformed event is
// dropped with a 400 before any session is touched.
func (h *TransportHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	conn, err := h.transports.Get(kind)
	if err != nil {
		_ = utils.WriteNotFound(w, "unknown transport kind")
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Unreadable request body", nil)
		return
	}

	if err := conn.Validate(raw); err != nil {
		h.logger.Warn("dropped malformed transport event",
			zap.String("transport", kind), zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	data, err := conn.ExtractCallData(raw)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	s := h.applyEvent(kind, data)
	_ = utils.WriteOK(w, s)
}

// applyEvent creates a session on the first event for a connection and maps
// later statuses onto lifecycle transitions.
func (h *TransportHandler) applyEvent(kind string, data *transport.CallData) *models.CallSession {
	existing, created := h.sessions.GetOrCreateByConnectionID(kind, data)
	if created {
		return existing
	}

	if data.Status == "completed" {
		if err := h.sessions.EndSession(existing.ID); err != nil {
			h.logger.Warn("failed to end session from transport event",
				zap.String("session_id", existing.ID), zap.Error(err))
		}
	} else if next, ok := statusTransitions[data.Status]; ok {
		if err := h.sessions.UpdateStatus(existing.ID, next); err != nil {
			// repeated or out-of-order transport statuses are routine
			h.logger.Debug("transport status not applied",
				zap.String("session_id", existing.ID),
				zap.String("status", data.Status),
				zap.Error(err))
			h.sessions.Touch(existing.ID, false)
		}
	} else {
		h.sessions.Touch(existing.ID, false)
	}

	updated, err := h.sessions.GetSession(existing.ID)
	if err != nil {
		return existing
	}
	return updated
}

// HandleBrowserSocket handles GET /v1/transports/browser/ws. The first frame
// must be a call.start event; the socket then stays attached to the session
// until the peer ends the call or disconnects.
func (h *TransportHandler) HandleBrowserSocket(w http.ResponseWriter, r *http.Request) {
	if h.browser == nil {
		_ = utils.WriteNotFound(w, "browser transport disabled")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	_, raw, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return
	}

	data, err := h.browser.ExtractCallData(raw)
	if err != nil {
		h.logger.Warn("dropped malformed browser start event", zap.Error(err))
		ws.Close()
		return
	}

	h.browser.Attach(data.ConnectionID, ws)
	s := h.sessions.CreateFromCallData(transport.KindBrowser, data)

	h.logger.Info("browser call started",
		zap.String("session_id", s.ID),
		zap.String("connection_id", data.ConnectionID))

	go h.browserReadLoop(s.ID, data.ConnectionID, ws)
}

// browserReadLoop consumes events until the peer ends the call or the socket
// drops, then ends the session.
func (h *TransportHandler) browserReadLoop(sessionID, connectionID string, ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			h.browser.Detach(connectionID)
			break
		}

		data, err := h.browser.ExtractCallData(raw)
		if err != nil {
			h.logger.Warn("dropped malformed browser event",
				zap.String("session_id", sessionID), zap.Error(err))
			continue
		}

		if data.Status == "call.end" || data.Status == "completed" {
			break
		}
		h.applyEvent(transport.KindBrowser, data)
	}

	if err := h.sessions.EndSession(sessionID); err != nil && !services.IsUnknownSessionError(err) {
		h.logger.Warn("failed to end browser session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
