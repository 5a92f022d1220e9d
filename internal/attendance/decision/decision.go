// Package decision turns a measured distance and the claimant's reported GPS
// accuracy into a PRESENT/ABSENT outcome.
//
// Readings worse than LowConfidenceCutoff are treated as indoor fixes: the
// threshold is raised to at least IndoorFloor and a larger accuracy buffer is
// allowed. Good fixes keep the base threshold and a tight buffer.
package decision

import "math"

// Status is the presence outcome recorded for a claim.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
)

// Policy holds the decision constants, all in meters.
type Policy struct {
	LowConfidenceCutoff float64
	IndoorFloor         float64
	LowConfidenceCap    float64
	HighConfidenceCap   float64
}

// DefaultPolicy returns the canonical constants: cutoff 20, floor 30, caps 20/10.
func DefaultPolicy() Policy {
	return Policy{
		LowConfidenceCutoff: 20,
		IndoorFloor:         30,
		LowConfidenceCap:    20,
		HighConfidenceCap:   10,
	}
}

// DefaultBaseThreshold is the distance allowed for a perfect GPS fix.
const DefaultBaseThreshold = 10.0

// Outcome is the result of Decide. Only Status is shown to claimants.
type Outcome struct {
	Status             Status
	EffectiveThreshold float64
	AdjustedThreshold  float64
	AccuracyBuffer     float64
	LowConfidence      bool
}

// Decide applies the two-tier rule chain:
//  1. accuracy above the cutoff marks the reading low-confidence
//  2. low-confidence raises the threshold to at least the indoor floor
//  3. the buffer is the accuracy, capped per confidence class
//  4. PRESENT iff distance <= adjusted threshold + buffer
//
// Negative or NaN accuracy counts as 0.
func (p Policy) Decide(distance, accuracy, baseThreshold float64) Outcome {
	if math.IsNaN(accuracy) || accuracy < 0 {
		accuracy = 0
	}

	lowConfidence := accuracy > p.LowConfidenceCutoff

	adjusted := baseThreshold
	bufferCap := p.HighConfidenceCap
	if lowConfidence {
		adjusted = math.Max(baseThreshold, p.IndoorFloor)
		bufferCap = p.LowConfidenceCap
	}

	buffer := math.Min(accuracy, bufferCap)
	effective := adjusted + buffer

	status := StatusAbsent
	if distance <= effective {
		status = StatusPresent
	}

	return Outcome{
		Status:             status,
		EffectiveThreshold: effective,
		AdjustedThreshold:  adjusted,
		AccuracyBuffer:     buffer,
		LowConfidence:      lowConfidence,
	}
}
