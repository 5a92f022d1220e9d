package events

import "time"

// Type names a domain event. Values are used as Kafka record headers and
// metric labels, so they must stay stable.
type Type string

const (
	TypeSessionIssued      Type = "otp.session_issued"
	TypeAttendanceRecorded Type = "attendance.recorded"
)

// Event is emitted from domain logic after a successful write. Keep it
// transport-agnostic so sinks can fan out.
//
// Key groups related events on one partition; both event types use the
// session ID so a roster can be rebuilt in order.
type Event struct {
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	RequestID  string    `json:"request_id,omitempty"`
	Payload    any       `json:"payload"`
}

// SessionIssued is the payload of TypeSessionIssued.
type SessionIssued struct {
	SessionID       string            `json:"session_id"`
	Code            string            `json:"code"`
	IssuerID        string            `json:"issuer_id"`
	AnchorLatitude  float64           `json:"anchor_latitude"`
	AnchorLongitude float64           `json:"anchor_longitude"`
	Classification  map[string]string `json:"classification,omitempty"`
	IssuedAt        time.Time         `json:"issued_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
}

// AttendanceRecorded is the payload of TypeAttendanceRecorded. It carries the
// effective threshold because consumers are internal reporting jobs.
type AttendanceRecorded struct {
	RecordID           string            `json:"record_id"`
	SessionID          string            `json:"session_id"`
	SessionCode        string            `json:"session_code"`
	ClaimantID         string            `json:"claimant_id"`
	Status             string            `json:"status"`
	DistanceMeters     float64           `json:"distance_meters"`
	ReportedAccuracy   float64           `json:"reported_accuracy"`
	EffectiveThreshold float64           `json:"effective_threshold"`
	Classification     map[string]string `json:"classification,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}
