// Package geo computes distances in meters between two coordinates.
//
// Pairs separated by less than ShortRangeCutoff (by a coarse degree estimate) use
// a local equirectangular projection, which stays numerically stable where
// spherical formulas operate on near-zero angles. Everything else uses Haversine.
// All functions are pure and safe for concurrent use.
package geo

import (
	"fmt"
	"math"

	dErrors "rollcall/pkg/domain-errors"
)

const (
	// EarthRadiusMeters is the IUGG mean Earth radius.
	EarthRadiusMeters = 6_371_008.8

	// MetersPerDegree converts a degree of arc on the mean sphere to meters.
	MetersPerDegree = EarthRadiusMeters * math.Pi / 180

	// CoarseMetersPerDegree is the rough factor used only to pick a method.
	CoarseMetersPerDegree = 111_000.0

	// ShortRangeCutoff is the coarse separation below which the planar method is used.
	ShortRangeCutoff = 30.0
)

// Method identifies the formula used for a distance.
type Method string

const (
	MethodEquirectangular Method = "equirectangular"
	MethodHaversine       Method = "haversine"
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects NaN, infinite and out-of-range coordinates.
func (p Point) Validate() error {
	if !finite(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return dErrors.New(dErrors.CodeInvalidCoordinate,
			fmt.Sprintf("latitude must be between -90 and 90, got %v", p.Latitude))
	}
	if !finite(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return dErrors.New(dErrors.CodeInvalidCoordinate,
			fmt.Sprintf("longitude must be between -180 and 180, got %v", p.Longitude))
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Latitude, p.Longitude)
}

// Distance returns the distance between a and b in meters, rounded to millimeters.
func Distance(a, b Point) (float64, error) {
	d, _, err := DistanceWithMethod(a, b)
	return d, err
}

// DistanceWithMethod is Distance that also reports which formula was applied.
func DistanceWithMethod(a, b Point) (float64, Method, error) {
	if err := a.Validate(); err != nil {
		return 0, "", err
	}
	if err := b.Validate(); err != nil {
		return 0, "", err
	}
	if a == b {
		return 0, MethodEquirectangular, nil
	}

	if coarseEstimate(a, b) < ShortRangeCutoff {
		return round3(equirectangular(a, b)), MethodEquirectangular, nil
	}
	return round3(haversine(a, b)), MethodHaversine, nil
}

// coarseEstimate is the Manhattan degree distance scaled to meters. It ignores
// longitude convergence, so it overestimates away from the equator.
func coarseEstimate(a, b Point) float64 {
	return (math.Abs(a.Latitude-b.Latitude) + math.Abs(lonDelta(a, b))) * CoarseMetersPerDegree
}

func equirectangular(a, b Point) float64 {
	meanLat := (a.Latitude + b.Latitude) / 2 * math.Pi / 180
	dy := (b.Latitude - a.Latitude) * MetersPerDegree
	dx := lonDelta(a, b) * math.Cos(meanLat) * MetersPerDegree
	return math.Hypot(dx, dy)
}

func haversine(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := lonDelta(a, b) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// lonDelta returns b.lon - a.lon normalized to [-180, 180] so pairs straddling
// the antimeridian are treated as neighbours.
func lonDelta(a, b Point) float64 {
	d := b.Longitude - a.Longitude
	switch {
	case d > 180:
		d -= 360
	case d < -180:
		d += 360
	}
	return d
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
