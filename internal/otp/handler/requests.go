package handler

import (
	"time"

	"rollcall/internal/geo"
	"rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/validation"
)

// IssueRequest is the body of POST /v1/otp/sessions. Coordinates are pointers
// so a missing field is distinguishable from the equator or prime meridian.
type IssueRequest struct {
	AnchorLatitude  *float64          `json:"anchor_latitude" validate:"required"`
	AnchorLongitude *float64          `json:"anchor_longitude" validate:"required"`
	Classification  map[string]string `json:"classification"`
	TTLSeconds      *int              `json:"ttl_seconds" validate:"omitempty,gt=0,lte=3600"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *IssueRequest) Normalize() {
	if r == nil {
		return
	}
	r.Classification = models.Classification(r.Classification).Normalize()
}

// Validate checks that the request is well-formed.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	return models.Classification(r.Classification).Validate()
}

// ToCommand converts the validated request into a domain command.
func (r *IssueRequest) ToCommand(issuerID id.IssuerID) models.IssueCommand {
	cmd := models.IssueCommand{
		IssuerID:       issuerID,
		Anchor:         geo.Point{Latitude: *r.AnchorLatitude, Longitude: *r.AnchorLongitude},
		Classification: models.Classification(r.Classification),
	}
	if r.TTLSeconds != nil {
		cmd.TTL = time.Duration(*r.TTLSeconds) * time.Second
	}
	return cmd
}
