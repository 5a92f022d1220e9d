package handler

import (
	"strings"

	"rollcall/internal/attendance/models"
	"rollcall/internal/geo"
	otpmodels "rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/validation"
)

// ClaimRequest is the body of POST /v1/attendance/claims.
type ClaimRequest struct {
	Code              string            `json:"code" validate:"required,notblank,max=32"`
	ClaimantLatitude  *float64          `json:"claimant_latitude" validate:"required"`
	ClaimantLongitude *float64          `json:"claimant_longitude" validate:"required"`
	ReportedAccuracy  *float64          `json:"reported_accuracy" validate:"omitempty,gte=0"`
	Classification    map[string]string `json:"classification"`
}

func (r *ClaimRequest) Normalize() {
	if r == nil {
		return
	}
	r.Code = strings.TrimSpace(r.Code)
	r.Classification = otpmodels.Classification(r.Classification).Normalize()
}

func (r *ClaimRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	return otpmodels.Classification(r.Classification).Validate()
}

// ToCommand converts the validated request into a domain command. A missing
// accuracy is treated as zero.
func (r *ClaimRequest) ToCommand(claimantID id.ClaimantID) models.ClaimCommand {
	cmd := models.ClaimCommand{
		ClaimantID:     claimantID,
		Code:           r.Code,
		Point:          geo.Point{Latitude: *r.ClaimantLatitude, Longitude: *r.ClaimantLongitude},
		Classification: otpmodels.Classification(r.Classification),
	}
	if r.ReportedAccuracy != nil {
		cmd.ReportedAccuracy = *r.ReportedAccuracy
	}
	return cmd
}
