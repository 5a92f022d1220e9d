// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "rollcall/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ClaimantID where an IssuerID is expected.
type (
	ClaimantID uuid.UUID
	IssuerID   uuid.UUID
	SessionID  uuid.UUID
	RecordID   uuid.UUID
)

// Parse functions - use at trust boundaries (token claims, API inputs).

func ParseClaimantID(s string) (ClaimantID, error) {
	id, err := parseUUID(s, "claimant ID")
	return ClaimantID(id), err
}

func ParseIssuerID(s string) (IssuerID, error) {
	id, err := parseUUID(s, "issuer ID")
	return IssuerID(id), err
}

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewRecordID() RecordID   { return RecordID(uuid.New()) }

// String methods - for logging and debugging.

func (id ClaimantID) String() string { return uuid.UUID(id).String() }
func (id IssuerID) String() string   { return uuid.UUID(id).String() }
func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id RecordID) String() string   { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id ClaimantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id IssuerID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Actor IDs come from bearer tokens,
// so the nil UUID is rejected here rather than deferred to the service layer.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
