package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceIdenticalPointsIsZero(t *testing.T) {
	points := []Point{
		{0, 0},
		{48.8584, 2.2945},
		{90, 0},
		{-90, 180},
		{35.6, -179.9999},
	}
	for _, p := range points {
		km, ok := Distance(p, p)
		require.True(t, ok, "point %v", p)
		assert.InDelta(t, 0, km, 1e-9, "point %v", p)
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	pairs := [][2]Point{
		{{48.8584, 2.2945}, {35.6, 139.7}},
		{{-33.86, 151.21}, {40.71, -74.0}},
		{{89.9, 10}, {-89.9, -170}},
		{{0, 179.9}, {0, -179.9}},
	}
	for _, pair := range pairs {
		ab, okAB := Distance(pair[0], pair[1])
		ba, okBA := Distance(pair[1], pair[0])
		require.True(t, okAB)
		require.True(t, okBA)
		assert.InDelta(t, ab, ba, 1e-9)
	}
}

func TestDistanceQuarterGreatCircle(t *testing.T) {
	km, ok := Distance(Point{0, 0}, Point{0, 90})
	require.True(t, ok)
	assert.InDelta(t, 10007.5, km, 1.0)
}

func TestDistanceAntimeridianAndAntipodes(t *testing.T) {
	km, ok := Distance(Point{0, 179.5}, Point{0, -179.5})
	require.True(t, ok)
	assert.InDelta(t, 111.19, km, 0.1)

	km, ok = Distance(Point{0, 0}, Point{0, 180})
	require.True(t, ok)
	assert.False(t, math.IsNaN(km))
	assert.InDelta(t, math.Pi*EarthRadiusKm, km, 1e-6)

	km, ok = Distance(Point{90, 0}, Point{-90, 0})
	require.True(t, ok)
	assert.InDelta(t, math.Pi*EarthRadiusKm, km, 1e-6)
}

func TestDistanceRejectsInvalidInput(t *testing.T) {
	bad := []Point{
		{math.NaN(), 0},
		{0, math.Inf(1)},
		{91, 0},
		{0, -180.5},
	}
	for _, p := range bad {
		_, ok := Distance(p, Point{0, 0})
		assert.False(t, ok, "point %v", p)
		_, ok = Distance(Point{0, 0}, p)
		assert.False(t, ok, "point %v", p)
	}
}

func TestDistancePtr(t *testing.T) {
	a := &Point{0, 0}
	assert.Nil(t, DistancePtr(nil, a))
	assert.Nil(t, DistancePtr(a, nil))
	assert.Nil(t, DistancePtr(a, &Point{100, 0}))

	km := DistancePtr(a, &Point{0, 90})
	require.NotNil(t, km)
	assert.InDelta(t, 10007.5, *km, 1.0)
}
