package session

import (
	"context"
	"sync"
	"time"

	"github.com/voicewire/call-control-plane/models"
	"github.com/voicewire/call-control-plane/observability"
	"github.com/voicewire/call-control-plane/services"
	"github.com/voicewire/call-control-plane/services/transport"
	"go.uber.org/zap"
)

// Manager owns the active-session table. It is transport-blind: teardown is
// delegated to the transport registry by the session's recorded kind.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*models.CallSession

	transports *transport.Registry
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewManager creates an empty session manager
func NewManager(transports *transport.Registry, metrics *observability.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:   make(map[string]*models.CallSession),
		transports: transports,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateSession allocates a new session in the Initializing state and stores
// it in the active table.
func (m *Manager) CreateSession(callerAddress string, direction models.CallDirection, meta models.TransportMetadata, language, dialect string) *models.CallSession {
	session := models.NewCallSession(callerAddress, direction, meta, language, dialect)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.updateGaugeLocked()
	out := *session
	m.mu.Unlock()

	m.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("transport", meta.Kind),
		zap.String("connection_id", meta.ConnectionID),
		zap.String("language", language))
	return &out
}

// CreateFromCallData builds a session from a normalized transport event
func (m *Manager) CreateFromCallData(kind string, data *transport.CallData) *models.CallSession {
	meta := models.TransportMetadata{
		Kind:         kind,
		ConnectionID: data.ConnectionID,
	}
	return m.CreateSession(data.CallerAddress, data.Direction, meta, data.LanguageHint, data.DialectHint)
}

// GetOrCreateByConnectionID returns the session bound to a transport
// connection, creating it from the event when none exists yet. Lookup and
// creation happen under one lock acquisition so two concurrent first events
// for the same connection never yield two sessions.
func (m *Manager) GetOrCreateByConnectionID(kind string, data *transport.CallData) (*models.CallSession, bool) {
	m.mu.Lock()
	for _, session := range m.sessions {
		if session.Transport.ConnectionID == data.ConnectionID {
			out := *session
			m.mu.Unlock()
			return &out, false
		}
	}

	session := models.NewCallSession(data.CallerAddress, data.Direction, models.TransportMetadata{
		Kind:         kind,
		ConnectionID: data.ConnectionID,
	}, data.LanguageHint, data.DialectHint)
	m.sessions[session.ID] = session
	m.updateGaugeLocked()
	out := *session
	m.mu.Unlock()

	m.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("transport", kind),
		zap.String("connection_id", data.ConnectionID),
		zap.String("language", data.LanguageHint))
	return &out, true
}

// UpdateStatus advances a session through its lifecycle. ConnectedAt is set on
// the first transition to Connected, CompletedAt on reaching a terminal state.
// An unknown session is a logged no-op.
func (m *Manager) UpdateStatus(sessionID string, next models.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		m.logger.Warn("status update for unknown session",
			zap.String("session_id", sessionID), zap.String("status", string(next)))
		return services.ErrUnknownSession
	}

	if !session.Status.CanTransitionTo(next) {
		m.logger.Warn("rejected session transition",
			zap.String("session_id", sessionID),
			zap.String("from", string(session.Status)),
			zap.String("to", string(next)))
		return services.ErrInvalidTransition
	}

	m.applyStatusLocked(session, next)
	m.updateGaugeLocked()

	m.logger.Info("session status updated",
		zap.String("session_id", sessionID), zap.String("status", string(next)))
	return nil
}

// EndSession forces the session to a terminal status regardless of prior
// state and asks its transport to tear the connection down. The session stays
// in the table until a cleanup sweep removes it.
func (m *Manager) EndSession(sessionID string) error {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("end requested for unknown session", zap.String("session_id", sessionID))
		return services.ErrUnknownSession
	}

	alreadyTerminal := session.Status.IsTerminal()
	if !alreadyTerminal {
		m.applyStatusLocked(session, models.SessionStatusCompleted)
		m.updateGaugeLocked()
	}
	snapshot := *session
	m.mu.Unlock()

	if alreadyTerminal {
		return nil
	}

	m.endTransport(&snapshot)
	m.logger.Info("session ended", zap.String("session_id", sessionID))
	return nil
}

// EndSessionByConnectionID ends the session bound to a transport connection
func (m *Manager) EndSessionByConnectionID(connectionID string) error {
	session, err := m.GetSessionByConnectionID(connectionID)
	if err != nil {
		m.logger.Warn("end requested for unknown connection",
			zap.String("connection_id", connectionID))
		return err
	}
	return m.EndSession(session.ID)
}

// GetSession returns a copy of the session with the given id
func (m *Manager) GetSession(sessionID string) (*models.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, services.ErrUnknownSession
	}
	out := *session
	return &out, nil
}

// GetSessionByConnectionID finds the session bound to a transport connection.
// The table stays small enough that a linear scan is fine.
func (m *Manager) GetSessionByConnectionID(connectionID string) (*models.CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, session := range m.sessions {
		if session.Transport.ConnectionID == connectionID {
			out := *session
			return &out, nil
		}
	}
	return nil, services.ErrUnknownConnection
}

// ActiveSessions returns copies of every session in an active status
func (m *Manager) ActiveSessions() []*models.CallSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.CallSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		if session.Status.IsActive() {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out
}

// Touch refreshes the session's last-activity timestamp and turn counter
func (m *Manager) Touch(sessionID string, countTurn bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	if countTurn {
		session.IncrementTurn()
	} else {
		session.Touch()
	}
}

// IsLive reports whether the session exists and has not reached a terminal
// status. The orchestration engine checks this before delivering a result.
func (m *Manager) IsLive(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	return ok && !session.Status.IsTerminal()
}

// EndAll forces every non-terminal session to Completed and tears down its
// transport connection. Transferred sessions are ended too. Returns the number
// of sessions ended.
func (m *Manager) EndAll() int {
	m.mu.Lock()
	var ids []string
	for id, session := range m.sessions {
		if !session.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.EndSession(id); err != nil {
			m.logger.Warn("failed to end session",
				zap.String("session_id", id), zap.Error(err))
		}
	}
	return len(ids)
}

// Count returns the total number of tracked sessions, terminal ones included
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// CleanupExpired ends and evicts every session idle past maxAge. Stale
// Transferred and terminal sessions are purged too. Returns the number of
// evicted sessions.
func (m *Manager) CleanupExpired(maxAge time.Duration) int {
	now := time.Now()

	m.mu.Lock()
	var expired []*models.CallSession
	for id, session := range m.sessions {
		if session.IdleFor(now) < maxAge {
			continue
		}
		if !session.Status.IsTerminal() {
			m.applyStatusLocked(session, models.SessionStatusTimeout)
		}
		snapshot := *session
		expired = append(expired, &snapshot)
		delete(m.sessions, id)
	}
	m.updateGaugeLocked()
	m.mu.Unlock()

	for _, session := range expired {
		m.endTransport(session)
		m.metrics.SessionsExpired.Inc()
		m.logger.Info("session expired",
			zap.String("session_id", session.ID),
			zap.String("status", string(session.Status)))
	}
	return len(expired)
}

// RunCleanup sweeps expired sessions on the given interval until the context
// is canceled.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupExpired(maxAge); n > 0 {
				m.logger.Info("cleanup sweep finished", zap.Int("evicted", n))
			}
		}
	}
}

// applyStatusLocked sets the status and its lifecycle timestamps. Callers hold
// the manager lock.
func (m *Manager) applyStatusLocked(session *models.CallSession, next models.SessionStatus) {
	now := time.Now()
	session.Status = next
	session.LastActivity = now

	if next == models.SessionStatusConnected && session.ConnectedAt == nil {
		session.ConnectedAt = &now
	}
	if next.IsTerminal() && session.CompletedAt == nil {
		session.CompletedAt = &now
	}
}

func (m *Manager) updateGaugeLocked() {
	active := 0
	for _, session := range m.sessions {
		if session.Status.IsActive() {
			active++
		}
	}
	m.metrics.ActiveSessions.Set(float64(active))
}

// endTransport asks the session's transport to tear down the connection. A
// missing or failing transport is logged, never surfaced.
func (m *Manager) endTransport(session *models.CallSession) {
	conn, err := m.transports.Get(session.Transport.Kind)
	if err != nil {
		m.logger.Warn("no transport connector for session teardown",
			zap.String("session_id", session.ID),
			zap.String("transport", session.Transport.Kind))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.EndCall(ctx, session); err != nil {
		m.logger.Warn("transport teardown failed",
			zap.String("session_id", session.ID),
			zap.String("transport", session.Transport.Kind),
			zap.Error(err))
	}
}
