package models

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/geo"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

func TestNewSession(t *testing.T) {
	issuedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	anchor := geo.Point{Latitude: 6.5244, Longitude: 3.3792}
	sessionID := id.SessionID(uuid.New())
	issuerID := id.IssuerID(uuid.New())

	t.Run("sets expiry from ttl and normalizes classification", func(t *testing.T) {
		s, err := NewSession(sessionID, "123456", anchor, Classification{" Cohort ": " CS101 "}, issuerID, issuedAt, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, issuedAt.Add(5*time.Minute), s.ExpiresAt)
		assert.Equal(t, Classification{"cohort": "CS101"}, s.Classification)
		assert.Equal(t, 5*time.Minute, s.TTL())
	})

	tests := []struct {
		name      string
		sessionID id.SessionID
		code      string
		issuerID  id.IssuerID
		issuedAt  time.Time
		ttl       time.Duration
		anchor    geo.Point
		wantCode  dErrors.Code
	}{
		{"nil session id", id.SessionID{}, "123456", issuerID, issuedAt, time.Minute, anchor, dErrors.CodeInvariantViolation},
		{"empty code", sessionID, "", issuerID, issuedAt, time.Minute, anchor, dErrors.CodeInvariantViolation},
		{"nil issuer", sessionID, "123456", id.IssuerID{}, issuedAt, time.Minute, anchor, dErrors.CodeInvariantViolation},
		{"zero issue time", sessionID, "123456", issuerID, time.Time{}, time.Minute, anchor, dErrors.CodeInvariantViolation},
		{"zero ttl", sessionID, "123456", issuerID, issuedAt, 0, anchor, dErrors.CodeInvariantViolation},
		{"bad anchor", sessionID, "123456", issuerID, issuedAt, time.Minute, geo.Point{Latitude: 91}, dErrors.CodeInvalidCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSession(tt.sessionID, tt.code, tt.anchor, nil, tt.issuerID, tt.issuedAt, tt.ttl)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, tt.wantCode))
		})
	}
}

func TestSessionStatus(t *testing.T) {
	issuedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s := Session{IssuedAt: issuedAt, ExpiresAt: issuedAt.Add(5 * time.Minute)}

	assert.Equal(t, SessionStatusActive, s.ComputeStatus(issuedAt))
	assert.Equal(t, 2*time.Minute, s.Remaining(issuedAt.Add(3*time.Minute)))

	// the window is half-open
	assert.Equal(t, SessionStatusExpired, s.ComputeStatus(s.ExpiresAt))
	assert.False(t, s.IsActive(s.ExpiresAt))
	assert.Zero(t, s.Remaining(s.ExpiresAt.Add(time.Second)))
}

func TestClassificationMatches(t *testing.T) {
	tests := []struct {
		name     string
		session  Classification
		claimant Classification
		want     bool
	}{
		{"empty session accepts anyone", nil, Classification{"cohort": "x"}, true},
		{"exact match", Classification{"cohort": "CS101"}, Classification{"cohort": "CS101"}, true},
		{"case and whitespace insensitive", Classification{"Cohort": "cs101 "}, Classification{" cohort": "CS101"}, true},
		{"extra claimant keys ignored", Classification{"cohort": "CS101"}, Classification{"cohort": "CS101", "level": "300"}, true},
		{"different value", Classification{"cohort": "CS101"}, Classification{"cohort": "CS102"}, false},
		{"missing key", Classification{"cohort": "CS101", "level": "300"}, Classification{"cohort": "CS101"}, false},
		{"nil claimant", Classification{"cohort": "CS101"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.session.Matches(tt.claimant))
		})
	}
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "any", Classification{}.String())
	assert.Equal(t, "cohort=CS101, level=300", Classification{"level": "300", "cohort": "CS101"}.String())

	session := Classification{"cohort": "CS101", "level": "300"}
	projected := session.Project(Classification{"COHORT": "CS102", "extra": "y"})
	assert.Equal(t, "cohort=CS102, level=(none)", projected.String())
}

func TestClassificationValidate(t *testing.T) {
	assert.NoError(t, Classification{"cohort": "CS101"}.Validate())
	assert.NoError(t, Classification(nil).Validate())

	tooMany := Classification{}
	for i := range 17 {
		tooMany[fmt.Sprintf("k%d", i)] = "v"
	}
	assert.True(t, dErrors.HasCode(tooMany.Validate(), dErrors.CodeValidation))

	longKey := Classification{strings.Repeat("k", 65): "v"}
	assert.True(t, dErrors.HasCode(longKey.Validate(), dErrors.CodeValidation))

	longValue := Classification{"cohort": strings.Repeat("v", 129)}
	assert.EqualError(t, longValue.Validate(), `classification value for "cohort" is too long`)
}
