package models

import (
	"time"

	"rollcall/internal/geo"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Session lifecycle states. There is no revoked state: a session ends only
// when its window closes.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusExpired SessionStatus = "expired"
)

// Session binds a short numeric code to an anchor location for a fixed window.
//
// # Code Invariant
//
// Code is unique among sessions that were unexpired when it was minted. Once a
// session expires its code may be handed out again, so anything that outlives
// the window (attendance records, events) must reference ID, never Code.
//
// Sessions are never mutated after creation.
type Session struct {
	ID             id.SessionID
	Code           string
	Anchor         geo.Point
	Classification Classification
	IssuerID       id.IssuerID
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// NewSession creates a Session with domain invariant checks.
func NewSession(sessionID id.SessionID, code string, anchor geo.Point, classification Classification,
	issuerID id.IssuerID, issuedAt time.Time, ttl time.Duration) (*Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session ID required")
	}
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session code required")
	}
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuer ID required")
	}
	if issuedAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issue time required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry must be after issue time")
	}
	if err := anchor.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		ID:             sessionID,
		Code:           code,
		Anchor:         anchor,
		Classification: classification.Normalize(),
		IssuerID:       issuerID,
		IssuedAt:       issuedAt,
		ExpiresAt:      issuedAt.Add(ttl),
	}, nil
}

// IsActive reports whether claims are still accepted at now.
// The window is half-open: at exactly ExpiresAt the session is expired.
func (s Session) IsActive(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// ComputeStatus reports the session lifecycle state at the provided time.
func (s Session) ComputeStatus(now time.Time) SessionStatus {
	if s.IsActive(now) {
		return SessionStatusActive
	}
	return SessionStatusExpired
}

// Remaining returns the time left in the window, or zero once expired.
func (s Session) Remaining(now time.Time) time.Duration {
	if !s.IsActive(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// TTL is the configured lifetime of the session.
func (s Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.IssuedAt)
}

// IssueCommand carries validated input for minting a session.
// A zero TTL means the service default.
type IssueCommand struct {
	IssuerID       id.IssuerID
	Anchor         geo.Point
	Classification Classification
	TTL            time.Duration
}
