package testutil

import (
	"time"

	"github.com/google/uuid"

	"rollcall/internal/attendance/decision"
	attendancemodels "rollcall/internal/attendance/models"
	"rollcall/internal/geo"
	otpmodels "rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
)

// TestIDs provides convenient pre-generated IDs for tests.
// Use these for deterministic test data.
var TestIDs = struct {
	IssuerID1   id.IssuerID
	IssuerID2   id.IssuerID
	ClaimantID1 id.ClaimantID
	ClaimantID2 id.ClaimantID
	SessionID1  id.SessionID
	SessionID2  id.SessionID
}{
	IssuerID1:   id.IssuerID(uuid.MustParse("11111111-1111-1111-1111-111111111111")),
	IssuerID2:   id.IssuerID(uuid.MustParse("22222222-2222-2222-2222-222222222222")),
	ClaimantID1: id.ClaimantID(uuid.MustParse("cccc0000-0000-0000-0000-000000000001")),
	ClaimantID2: id.ClaimantID(uuid.MustParse("cccc0000-0000-0000-0000-000000000002")),
	SessionID1:  id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
	SessionID2:  id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000002")),
}

// TestAnchor is a lecture hall coordinate used as the default session anchor.
var TestAnchor = geo.Point{Latitude: 6.5158, Longitude: 3.3898}

// SessionBuilder provides a fluent interface for building test sessions.
type SessionBuilder struct {
	session *otpmodels.Session
}

// NewSessionBuilder creates a new SessionBuilder with sensible defaults.
func NewSessionBuilder() *SessionBuilder {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &SessionBuilder{
		session: &otpmodels.Session{
			ID:             id.SessionID(uuid.New()),
			Code:           "123456",
			Anchor:         TestAnchor,
			Classification: otpmodels.Classification{"cohort": "CS101"},
			IssuerID:       TestIDs.IssuerID1,
			IssuedAt:       now,
			ExpiresAt:      now.Add(5 * time.Minute),
		},
	}
}

func (b *SessionBuilder) WithID(sessionID id.SessionID) *SessionBuilder {
	b.session.ID = sessionID
	return b
}

func (b *SessionBuilder) WithCode(code string) *SessionBuilder {
	b.session.Code = code
	return b
}

func (b *SessionBuilder) WithAnchor(anchor geo.Point) *SessionBuilder {
	b.session.Anchor = anchor
	return b
}

func (b *SessionBuilder) WithClassification(c otpmodels.Classification) *SessionBuilder {
	b.session.Classification = c
	return b
}

func (b *SessionBuilder) WithIssuerID(issuerID id.IssuerID) *SessionBuilder {
	b.session.IssuerID = issuerID
	return b
}

// IssuedAt moves the window to start at t, keeping its length.
func (b *SessionBuilder) IssuedAt(t time.Time) *SessionBuilder {
	ttl := b.session.ExpiresAt.Sub(b.session.IssuedAt)
	b.session.IssuedAt = t
	b.session.ExpiresAt = t.Add(ttl)
	return b
}

func (b *SessionBuilder) ExpiresAt(t time.Time) *SessionBuilder {
	b.session.ExpiresAt = t
	return b
}

// Expired places the whole window in the past.
func (b *SessionBuilder) Expired() *SessionBuilder {
	return b.IssuedAt(time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour))
}

func (b *SessionBuilder) Build() *otpmodels.Session {
	return b.session
}

// RecordBuilder provides a fluent interface for building attendance records.
type RecordBuilder struct {
	record *attendancemodels.Record
}

// NewRecordBuilder creates a record for session, defaulting to a present claim
// made a few meters from the anchor.
func NewRecordBuilder(session *otpmodels.Session) *RecordBuilder {
	return &RecordBuilder{
		record: &attendancemodels.Record{
			ID:                 id.NewRecordID(),
			ClaimantID:         TestIDs.ClaimantID1,
			SessionID:          session.ID,
			SessionCode:        session.Code,
			ClaimantPoint:      session.Anchor,
			ReportedAccuracy:   5,
			DistanceMeters:     3.5,
			EffectiveThreshold: 15,
			Status:             decision.StatusPresent,
			Classification:     session.Classification.Clone(),
			CreatedAt:          session.IssuedAt.Add(time.Minute),
		},
	}
}

func (b *RecordBuilder) WithClaimantID(claimantID id.ClaimantID) *RecordBuilder {
	b.record.ClaimantID = claimantID
	return b
}

func (b *RecordBuilder) WithStatus(status decision.Status) *RecordBuilder {
	b.record.Status = status
	return b
}

func (b *RecordBuilder) WithDistance(meters float64) *RecordBuilder {
	b.record.DistanceMeters = meters
	return b
}

func (b *RecordBuilder) CreatedAt(t time.Time) *RecordBuilder {
	b.record.CreatedAt = t
	return b
}

func (b *RecordBuilder) Build() *attendancemodels.Record {
	return b.record
}
