package decision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name          string
		distance      float64
		accuracy      float64
		base          float64
		wantStatus    Status
		wantEffective float64
		wantLow       bool
	}{
		{"exact location good fix", 0, 5, 10, StatusPresent, 15, false},
		{"indoor compensation", 12, 25, 10, StatusPresent, 50, true},
		{"far with no accuracy", 144.554, 0, 10, StatusAbsent, 10, false},
		{"on the boundary is present", 20, 10, 10, StatusPresent, 20, false},
		{"just past the boundary", 20.001, 10, 10, StatusAbsent, 20, false},
		{"high-confidence buffer capped", 25, 18, 10, StatusAbsent, 20, false},
		{"cutoff itself is high-confidence", 19, 20, 10, StatusPresent, 20, false},
		{"low-confidence buffer capped", 50, 80, 10, StatusPresent, 50, true},
		{"base above floor kept", 60, 40, 45, StatusPresent, 65, true},
		{"negative accuracy ignored", 10, -5, 10, StatusPresent, 10, false},
		{"nan accuracy ignored", 10.5, math.NaN(), 10, StatusAbsent, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := policy.Decide(tt.distance, tt.accuracy, tt.base)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.InDelta(t, tt.wantEffective, out.EffectiveThreshold, 1e-9)
			assert.Equal(t, tt.wantLow, out.LowConfidence)
			assert.InDelta(t, out.AdjustedThreshold+out.AccuracyBuffer, out.EffectiveThreshold, 1e-9)
		})
	}
}

func TestDecide_Deterministic(t *testing.T) {
	policy := DefaultPolicy()
	inputs := [][3]float64{{0, 0, 10}, {12, 25, 10}, {31.4159, 19.99, 10}, {1e6, 1e6, 10}}
	for _, in := range inputs {
		first := policy.Decide(in[0], in[1], in[2])
		for range 100 {
			assert.Equal(t, first, policy.Decide(in[0], in[1], in[2]))
		}
	}
}

func TestDecide_CustomPolicy(t *testing.T) {
	strict := Policy{LowConfidenceCutoff: 5, IndoorFloor: 8, LowConfidenceCap: 2, HighConfidenceCap: 0}

	out := strict.Decide(9, 6, 5)

	assert.True(t, out.LowConfidence)
	assert.InDelta(t, 10.0, out.EffectiveThreshold, 1e-9)
	assert.Equal(t, StatusPresent, out.Status)
}
