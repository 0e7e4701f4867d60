package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voicewire/call-control-plane/models"
	"go.uber.org/zap"
)

// KindBrowser identifies the browser real-time link transport
const KindBrowser = "browser"

const browserWriteTimeout = 5 * time.Second

// browserEvent is the wire shape of one inbound browser event
type browserEvent struct {
	Event        string `json:"event"`
	ConnectionID string `json:"connection_id"`
	Caller       string `json:"caller,omitempty"`
	Direction    string `json:"direction,omitempty"`
	Status       string `json:"status,omitempty"`
	Language     string `json:"language,omitempty"`
	Dialect      string `json:"dialect,omitempty"`
}

// browserFrame is the wire shape of one outbound browser message
type browserFrame struct {
	Type        string            `json:"type"`
	Text        string            `json:"text,omitempty"`
	AudioFormat string            `json:"audio_format,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BrowserConnector adapts browser real-time links carried over websockets.
// The surrounding handler upgrades the HTTP request and attaches the socket;
// the adapter owns delivery and teardown from then on.
type BrowserConnector struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
}

// NewBrowserConnector creates a browser transport adapter
func NewBrowserConnector(logger *zap.Logger) *BrowserConnector {
	return &BrowserConnector{
		logger: logger,
		conns:  make(map[string]*websocket.Conn),
	}
}

// Kind returns the browser transport kind
func (b *BrowserConnector) Kind() string { return KindBrowser }

// Attach binds an upgraded websocket to a connection id. A previous socket
// under the same id is closed first.
func (b *BrowserConnector) Attach(connectionID string, conn *websocket.Conn) {
	b.mu.Lock()
	prev := b.conns[connectionID]
	b.conns[connectionID] = conn
	b.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Detach drops the socket for a connection id without closing it; used when
// the read loop observed the peer going away on its own.
func (b *BrowserConnector) Detach(connectionID string) {
	b.mu.Lock()
	delete(b.conns, connectionID)
	b.mu.Unlock()
}

// Validate checks an inbound browser event for the required fields
func (b *BrowserConnector) Validate(raw []byte) error {
	var event browserEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}
	if event.Event == "" {
		return fmt.Errorf("%w: missing event field", ErrEventInvalid)
	}
	if event.ConnectionID == "" {
		return fmt.Errorf("%w: missing connection_id", ErrEventInvalid)
	}
	return nil
}

// ExtractCallData normalizes a validated browser event. Browser links are
// always inbound unless the event says otherwise.
func (b *BrowserConnector) ExtractCallData(raw []byte) (*CallData, error) {
	if err := b.Validate(raw); err != nil {
		return nil, err
	}

	var event browserEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventInvalid, err)
	}

	direction := models.DirectionInbound
	if event.Direction == string(models.DirectionOutbound) {
		direction = models.DirectionOutbound
	}

	status := event.Status
	if status == "" {
		status = event.Event
	}

	return &CallData{
		ConnectionID:  event.ConnectionID,
		CallerAddress: event.Caller,
		Direction:     direction,
		Status:        status,
		LanguageHint:  event.Language,
		DialectHint:   event.Dialect,
	}, nil
}

// SendResponse delivers a response frame over the session's websocket. Text
// goes as a JSON frame, audio as a separate binary frame.
func (b *BrowserConnector) SendResponse(ctx context.Context, session *models.CallSession, resp *Response) error {
	conn, err := b.socketFor(session)
	if err != nil {
		return err
	}

	deadline := writeDeadline(ctx)
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}

	frame := browserFrame{
		Type:        "response",
		Text:        resp.Text,
		AudioFormat: resp.AudioFormat,
		Metadata:    resp.Metadata,
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("writing response frame: %w", err)
	}

	if len(resp.Audio) > 0 {
		if err := conn.WriteMessage(websocket.BinaryMessage, resp.Audio); err != nil {
			return fmt.Errorf("writing audio frame: %w", err)
		}
	}
	return nil
}

// EndCall closes the session's websocket and forgets the connection
func (b *BrowserConnector) EndCall(ctx context.Context, session *models.CallSession) error {
	connectionID := session.Transport.ConnectionID

	b.mu.Lock()
	conn, ok := b.conns[connectionID]
	delete(b.conns, connectionID)
	b.mu.Unlock()

	if !ok {
		// the peer may already be gone; ending twice is a no-op
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended")
	if err := conn.WriteControl(websocket.CloseMessage, msg, writeDeadline(ctx)); err != nil {
		b.logger.Debug("close message not delivered",
			zap.String("connection_id", connectionID), zap.Error(err))
	}
	return conn.Close()
}

// Connected reports whether a live socket is attached for the connection id
func (b *BrowserConnector) Connected(connectionID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.conns[connectionID]
	return ok
}

func (b *BrowserConnector) socketFor(session *models.CallSession) (*websocket.Conn, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	conn, ok := b.conns[session.Transport.ConnectionID]
	if !ok {
		return nil, fmt.Errorf("no live socket for connection %s: %w",
			session.Transport.ConnectionID, ErrTransportNotFound)
	}
	return conn, nil
}

func writeDeadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(browserWriteTimeout)
}
