package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/observability"
	"github.com/voicewire/call-control-plane/services/session"
	"github.com/voicewire/call-control-plane/services/transport"
	"go.uber.org/zap"
)

// noopTransport satisfies the transport contract without any I/O
type noopTransport struct{ kind string }

func (n noopTransport) Kind() string                   { return n.kind }
func (n noopTransport) Validate([]byte) error          { return nil }
func (n noopTransport) ExtractCallData([]byte) (*transport.CallData, error) {
	return nil, nil
}
func (n noopTransport) SendResponse(context.Context, *models.CallSession, *transport.Response) error {
	return nil
}
func (n noopTransport) EndCall(context.Context, *models.CallSession) error { return nil }

func newSessionRouter(t *testing.T) (*chi.Mux, *session.Manager) {
	t.Helper()

	reg := transport.NewRegistry()
	require.NoError(t, reg.Register(noopTransport{kind: "telephony"}))
	manager := session.NewManager(reg, observability.NewTestMetrics(), zap.NewNop())

	h := NewSessionHandler(manager, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/v1/sessions", h.HandleListActive)
	r.Get("/v1/sessions/{id}", h.HandleGetSession)
	r.Delete("/v1/sessions/{id}", h.HandleEndSession)
	r.Patch("/v1/sessions/{id}/status", h.HandleUpdateStatus)
	r.Get("/v1/sessions/by-connection/{connectionId}", h.HandleGetByConnection)
	r.Delete("/v1/sessions/by-connection/{connectionId}", h.HandleEndByConnection)

	return r, manager
}

func createSession(m *session.Manager, connectionID string) *models.CallSession {
	return m.CreateSession("+15551234", models.DirectionInbound,
		models.TransportMetadata{Kind: "telephony", ConnectionID: connectionID}, "en", "")
}

func TestSessionHandler_GetSession(t *testing.T) {
	router, manager := newSessionRouter(t)
	s := createSession(manager, "CA1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/"+s.ID, nil))

	assert.Equal(t, 200, rec.Code)

	var resp struct {
		Data models.CallSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, s.ID, resp.Data.ID)
	assert.Equal(t, models.SessionStatusInitializing, resp.Data.Status)
}

func TestSessionHandler_GetSession_NotFound(t *testing.T) {
	router, _ := newSessionRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/nope", nil))

	assert.Equal(t, 404, rec.Code)
}

func TestSessionHandler_GetByConnection(t *testing.T) {
	router, manager := newSessionRouter(t)
	s := createSession(manager, "CA42")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions/by-connection/CA42", nil))

	assert.Equal(t, 200, rec.Code)

	var resp struct {
		Data models.CallSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, s.ID, resp.Data.ID)
}

func TestSessionHandler_ListActive(t *testing.T) {
	router, manager := newSessionRouter(t)
	createSession(manager, "CA1")
	ended := createSession(manager, "CA2")
	require.NoError(t, manager.EndSession(ended.ID))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sessions", nil))

	assert.Equal(t, 200, rec.Code)

	var resp struct {
		Data []models.CallSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
}

func TestSessionHandler_UpdateStatus(t *testing.T) {
	router, manager := newSessionRouter(t)
	s := createSession(manager, "CA1")

	body, _ := json.Marshal(UpdateStatusBody{Status: "connected"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("PATCH", "/v1/sessions/"+s.ID+"/status", bytes.NewReader(body)))

	assert.Equal(t, 200, rec.Code)

	var resp struct {
		Data models.CallSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.SessionStatusConnected, resp.Data.Status)
	assert.NotNil(t, resp.Data.ConnectedAt)
}

func TestSessionHandler_UpdateStatus_InvalidTransition(t *testing.T) {
	router, manager := newSessionRouter(t)
	s := createSession(manager, "CA1")
	require.NoError(t, manager.EndSession(s.ID))

	body, _ := json.Marshal(UpdateStatusBody{Status: "active"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("PATCH", "/v1/sessions/"+s.ID+"/status", bytes.NewReader(body)))

	assert.Equal(t, 400, rec.Code)
}

func TestSessionHandler_EndSession(t *testing.T) {
	router, manager := newSessionRouter(t)
	s := createSession(manager, "CA1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/v1/sessions/"+s.ID, nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := manager.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
}

func TestSessionHandler_EndByConnection(t *testing.T) {
	router, manager := newSessionRouter(t)
	createSession(manager, "CA123")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/v1/sessions/by-connection/CA123", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Scenario: the ended session remains queryable by connection id
	got, err := manager.GetSessionByConnectionID("CA123")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
}

func TestSessionHandler_EndByConnection_Unknown(t *testing.T) {
	router, _ := newSessionRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/v1/sessions/by-connection/nope", nil))

	assert.Equal(t, 404, rec.Code)
}
