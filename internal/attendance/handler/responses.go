package handler

import (
	"time"

	"rollcall/internal/attendance/models"
)

// ClaimResponse is what a claimant sees of their own record. The effective
// threshold is deliberately absent.
type ClaimResponse struct {
	ID             string            `json:"id"`
	SessionCode    string            `json:"session_code"`
	DistanceMeters float64           `json:"distance_meters"`
	Status         string            `json:"status"`
	Classification map[string]string `json:"classification"`
	CreatedAt      time.Time         `json:"created_at"`
}

type ClaimListResponse struct {
	Records []*ClaimResponse `json:"records"`
	Total   int              `json:"total"`
}

// RosterEntry is one claim as seen by the issuer who owns the session.
type RosterEntry struct {
	ID                 string    `json:"id"`
	ClaimantID         string    `json:"claimant_id"`
	DistanceMeters     float64   `json:"distance_meters"`
	ReportedAccuracy   float64   `json:"reported_accuracy"`
	EffectiveThreshold float64   `json:"effective_threshold"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

type RosterResponse struct {
	SessionID   string         `json:"session_id,omitempty"`
	SessionCode string         `json:"session_code"`
	Records     []*RosterEntry `json:"records"`
	Present     int            `json:"present"`
	Absent      int            `json:"absent"`
}

func toClaimResponse(r *models.Record) *ClaimResponse {
	classification := map[string]string(r.Classification)
	if classification == nil {
		classification = map[string]string{}
	}
	return &ClaimResponse{
		ID:             r.ID.String(),
		SessionCode:    r.SessionCode,
		DistanceMeters: r.DistanceMeters,
		Status:         string(r.Status),
		Classification: classification,
		CreatedAt:      r.CreatedAt,
	}
}

func toClaimListResponse(records []*models.Record) *ClaimListResponse {
	out := make([]*ClaimResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toClaimResponse(r))
	}
	return &ClaimListResponse{Records: out, Total: len(out)}
}

func toRosterResponse(code string, records []*models.Record) *RosterResponse {
	resp := &RosterResponse{SessionCode: code, Records: make([]*RosterEntry, 0, len(records))}
	for _, r := range records {
		if r.IsPresent() {
			resp.Present++
		} else {
			resp.Absent++
		}
		resp.Records = append(resp.Records, &RosterEntry{
			ID:                 r.ID.String(),
			ClaimantID:         r.ClaimantID.String(),
			DistanceMeters:     r.DistanceMeters,
			ReportedAccuracy:   r.ReportedAccuracy,
			EffectiveThreshold: r.EffectiveThreshold,
			Status:             string(r.Status),
			CreatedAt:          r.CreatedAt,
		})
	}
	return resp
}
