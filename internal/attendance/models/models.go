package models

import (
	"time"

	"rollcall/internal/attendance/decision"
	"rollcall/internal/geo"
	otpmodels "rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// Record is the immutable outcome of one claim.
//
// # Scoping Invariant
//
// A record is unique by (ClaimantID, SessionID). SessionCode is kept for display
// only; codes are recycled after expiry, so it must never be used as a key.
//
// EffectiveThreshold is retained for audit and issuer review. It is never
// returned to claimants, since knowing it would let them tune spoofed fixes.
type Record struct {
	ID                 id.RecordID
	ClaimantID         id.ClaimantID
	SessionID          id.SessionID
	SessionCode        string
	ClaimantPoint      geo.Point
	ReportedAccuracy   float64
	DistanceMeters     float64
	EffectiveThreshold float64
	Status             decision.Status
	Classification     otpmodels.Classification
	CreatedAt          time.Time
}

// NewRecord creates a Record with domain invariant checks.
func NewRecord(recordID id.RecordID, claimantID id.ClaimantID, session *otpmodels.Session,
	point geo.Point, accuracy, distance float64, outcome decision.Outcome, createdAt time.Time) (*Record, error) {
	if recordID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "record ID required")
	}
	if claimantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "claimant ID required")
	}
	if session == nil || session.ID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session required")
	}
	if distance < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "distance must not be negative")
	}
	if outcome.Status != decision.StatusPresent && outcome.Status != decision.StatusAbsent {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid attendance status")
	}
	if createdAt.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "creation time required")
	}
	return &Record{
		ID:                 recordID,
		ClaimantID:         claimantID,
		SessionID:          session.ID,
		SessionCode:        session.Code,
		ClaimantPoint:      point,
		ReportedAccuracy:   accuracy,
		DistanceMeters:     distance,
		EffectiveThreshold: outcome.EffectiveThreshold,
		Status:             outcome.Status,
		Classification:     session.Classification.Clone(),
		CreatedAt:          createdAt,
	}, nil
}

// IsPresent reports whether the claim was accepted.
func (r Record) IsPresent() bool {
	return r.Status == decision.StatusPresent
}

// ClaimCommand carries validated input for a claim.
type ClaimCommand struct {
	ClaimantID       id.ClaimantID
	Code             string
	Point            geo.Point
	ReportedAccuracy float64
	Classification   otpmodels.Classification
}

// Roster is every record of one session, oldest first.
type Roster struct {
	SessionID   id.SessionID
	SessionCode string
	Records     []*Record
}
