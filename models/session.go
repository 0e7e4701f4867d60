package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents a call session's position in its lifecycle
type SessionStatus string

const (
	SessionStatusInitializing SessionStatus = "initializing"
	SessionStatusConnected    SessionStatus = "connected"
	SessionStatusActive       SessionStatus = "active"
	SessionStatusHold         SessionStatus = "hold"
	SessionStatusTransferred  SessionStatus = "transferred"
	SessionStatusCompleted    SessionStatus = "completed"
	SessionStatusFailed       SessionStatus = "failed"
	SessionStatusTimeout      SessionStatus = "timeout"
)

// statusRank orders the lifecycle so transitions can be checked as
// forward-only. Hold and Active share a rank because they are the only
// two-way edge in the state machine.
var statusRank = map[SessionStatus]int{
	SessionStatusInitializing: 0,
	SessionStatusConnected:    1,
	SessionStatusActive:       2,
	SessionStatusHold:         2,
	SessionStatusTransferred:  3,
	SessionStatusCompleted:    3,
	SessionStatusFailed:       3,
	SessionStatusTimeout:      3,
}

// IsTerminal reports whether the status ends the session's lifecycle
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusFailed, SessionStatusTimeout:
		return true
	}
	return false
}

// IsActive reports whether a session in this status counts toward the active
// listing. Transferred is non-active but retained until explicitly ended.
func (s SessionStatus) IsActive() bool {
	switch s {
	case SessionStatusInitializing, SessionStatusConnected, SessionStatusActive, SessionStatusHold:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Status only advances forward, with Hold <-> Active as the one exception, and
// nothing leaves a terminal status.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if s == next {
		return false
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	// Hold <-> Active share a rank and may flip either way
	if from == to {
		return (s == SessionStatusActive && next == SessionStatusHold) ||
			(s == SessionStatusHold && next == SessionStatusActive)
	}
	return to > from
}

// CallDirection indicates whether the call was placed to or by the system
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// TransportMetadata binds a session to exactly one transport connection for
// the session's lifetime. It is immutable once attached.
type TransportMetadata struct {
	Kind         string            `json:"kind"` // e.g. "telephony", "sip", "browser"
	ConnectionID string            `json:"connection_id"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// CallSession is the transport-independent record of one ongoing call. It is
// created on the first inbound transport event, mutated through the call, and
// marked terminal at the end.
type CallSession struct {
	ID            string            `json:"id"`
	CallerAddress string            `json:"caller_address"`
	Direction     CallDirection     `json:"direction"`
	Status        SessionStatus     `json:"status"`
	Language      string            `json:"language"`
	Dialect       string            `json:"dialect,omitempty"`
	Transport     TransportMetadata `json:"transport"`

	CreatedAt    time.Time  `json:"created_at"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastActivity time.Time  `json:"last_activity"`

	TurnCount int `json:"turn_count"`

	// Context is the one scratch field for transient per-provider data; the
	// struct shape itself never changes at runtime.
	Context map[string]interface{} `json:"context,omitempty"`
}

// NewCallSession creates a session in the Initializing state with a fresh ID
func NewCallSession(callerAddress string, direction CallDirection, transport TransportMetadata, language, dialect string) *CallSession {
	now := time.Now()
	return &CallSession{
		ID:            uuid.New().String(),
		CallerAddress: callerAddress,
		Direction:     direction,
		Status:        SessionStatusInitializing,
		Language:      language,
		Dialect:       dialect,
		Transport:     transport,
		CreatedAt:     now,
		LastActivity:  now,
		Context:       make(map[string]interface{}),
	}
}

// Touch updates the last-activity timestamp
func (s *CallSession) Touch() {
	s.LastActivity = time.Now()
}

// IncrementTurn records one completed conversational turn
func (s *CallSession) IncrementTurn() {
	s.TurnCount++
	s.Touch()
}

// IdleFor reports how long the session has been without activity
func (s *CallSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActivity)
}
