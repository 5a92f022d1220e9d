package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollcall/pkg/domain-errors"
)

var bangalore = Point{Latitude: 12.9716, Longitude: 77.5946}

func TestDistance_IdenticalPointsAreZero(t *testing.T) {
	points := []Point{
		bangalore,
		{Latitude: 0, Longitude: 0},
		{Latitude: 90, Longitude: 180},
		{Latitude: -89.999999, Longitude: -179.999999},
	}
	for _, p := range points {
		d, err := Distance(p, p)
		require.NoError(t, err)
		assert.Equal(t, 0.0, d, "distance(%v, %v)", p, p)
	}
}

func TestDistance_Symmetry(t *testing.T) {
	pairs := [][2]Point{
		{bangalore, {Latitude: 12.97161, Longitude: 77.59461}},
		{bangalore, {Latitude: 12.972901, Longitude: 77.594604}},
		{{Latitude: 51.5007, Longitude: -0.1246}, {Latitude: 40.6892, Longitude: -74.0445}},
		{{Latitude: 0, Longitude: 179.9999}, {Latitude: 0, Longitude: -179.9999}},
		{{Latitude: -33.8568, Longitude: 151.2153}, {Latitude: -33.85681, Longitude: 151.21531}},
	}
	for _, p := range pairs {
		ab, err := Distance(p[0], p[1])
		require.NoError(t, err)
		ba, err := Distance(p[1], p[0])
		require.NoError(t, err)
		assert.Equal(t, ab, ba, "distance must be symmetric for %v / %v", p[0], p[1])
	}
}

func TestDistance_MonotonicAlongBearing(t *testing.T) {
	regimes := map[Method][]float64{
		// coarse estimate stays under 30 m
		MethodEquirectangular: {0.00001, 0.00003, 0.00006, 0.0001, 0.00013},
		MethodHaversine:       {0.001, 0.01, 0.1, 1, 10},
	}
	for method, steps := range regimes {
		t.Run(string(method), func(t *testing.T) {
			prev := -1.0
			for _, step := range steps {
				p := Point{Latitude: bangalore.Latitude + step, Longitude: bangalore.Longitude + step}
				d, m, err := DistanceWithMethod(bangalore, p)
				require.NoError(t, err)
				assert.Equal(t, method, m)
				assert.Greater(t, d, prev)
				prev = d
			}
		})
	}
}

func TestDistance_KnownValues(t *testing.T) {
	t.Run("about 145 m north uses haversine", func(t *testing.T) {
		d, m, err := DistanceWithMethod(
			Point{Latitude: 12.971601, Longitude: 77.594604},
			Point{Latitude: 12.972901, Longitude: 77.594604},
		)
		require.NoError(t, err)
		assert.Equal(t, MethodHaversine, m)
		assert.InDelta(t, 144.55, d, 0.05)
	})

	t.Run("short hop uses equirectangular", func(t *testing.T) {
		// 0.0001 degrees of latitude
		d, m, err := DistanceWithMethod(bangalore, Point{Latitude: 12.9717, Longitude: 77.5946})
		require.NoError(t, err)
		assert.Equal(t, MethodEquirectangular, m)
		assert.InDelta(t, 0.0001*MetersPerDegree, d, 0.001)
	})

	t.Run("methods agree near the cutoff", func(t *testing.T) {
		a := bangalore
		b := Point{Latitude: 12.97175, Longitude: 77.59465}
		assert.InDelta(t, haversine(a, b), equirectangular(a, b), 0.001)
	})

	t.Run("london to new york", func(t *testing.T) {
		d, err := Distance(Point{Latitude: 51.5074, Longitude: -0.1278}, Point{Latitude: 40.7128, Longitude: -74.0060})
		require.NoError(t, err)
		assert.InDelta(t, 5_570_000, d, 10_000)
	})

	t.Run("antimeridian neighbours are close", func(t *testing.T) {
		d, err := Distance(Point{Latitude: 0, Longitude: 179.99999}, Point{Latitude: 0, Longitude: -179.99999})
		require.NoError(t, err)
		assert.InDelta(t, 0.00002*MetersPerDegree, d, 0.01)
	})
}

func TestDistance_RoundedToMillimeters(t *testing.T) {
	d, err := Distance(bangalore, Point{Latitude: 12.97161234, Longitude: 77.59461234})
	require.NoError(t, err)
	assert.Equal(t, math.Round(d*1000)/1000, d)
}

func TestDistance_InvalidCoordinates(t *testing.T) {
	invalid := []Point{
		{Latitude: 90.0001, Longitude: 0},
		{Latitude: -91, Longitude: 0},
		{Latitude: 0, Longitude: 180.5},
		{Latitude: 0, Longitude: -181},
		{Latitude: math.NaN(), Longitude: 0},
		{Latitude: 0, Longitude: math.Inf(1)},
	}
	for _, p := range invalid {
		_, err := Distance(bangalore, p)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCoordinate), "point %v", p)

		_, err = Distance(p, bangalore)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCoordinate), "point %v", p)
	}
}

func TestPoint_ValidateBoundaries(t *testing.T) {
	for _, p := range []Point{
		{Latitude: 90, Longitude: 180},
		{Latitude: -90, Longitude: -180},
	} {
		assert.NoError(t, p.Validate())
	}
}
