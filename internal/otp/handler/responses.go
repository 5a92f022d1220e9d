package handler

import (
	"time"

	"rollcall/internal/otp/models"
)

// SessionResponse describes a session to the issuer who owns it.
type SessionResponse struct {
	ID               string            `json:"id"`
	Code             string            `json:"code"`
	AnchorLatitude   float64           `json:"anchor_latitude"`
	AnchorLongitude  float64           `json:"anchor_longitude"`
	Classification   map[string]string `json:"classification"`
	IssuedAt         time.Time         `json:"issued_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	Status           string            `json:"status"`
	RemainingSeconds int               `json:"remaining_seconds"`
}

func toSessionResponse(s *models.Session, now time.Time) *SessionResponse {
	classification := s.Classification
	if classification == nil {
		classification = map[string]string{}
	}
	return &SessionResponse{
		ID:               s.ID.String(),
		Code:             s.Code,
		AnchorLatitude:   s.Anchor.Latitude,
		AnchorLongitude:  s.Anchor.Longitude,
		Classification:   classification,
		IssuedAt:         s.IssuedAt,
		ExpiresAt:        s.ExpiresAt,
		Status:           string(s.ComputeStatus(now)),
		RemainingSeconds: int(s.Remaining(now).Seconds()),
	}
}
