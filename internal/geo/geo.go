// Package geo provides geographic points and great-circle distances.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and inside
// [-90,90] and [-180,180] respectively.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", p.Lat, p.Lon)
}

// Distance returns the haversine great-circle distance in kilometres.
// ok is false when either point is not Valid; no partial result is returned.
func Distance(a, b Point) (km float64, ok bool) {
	if !a.Valid() || !b.Valid() {
		return 0, false
	}
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push h slightly outside [0,1] near antipodes.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h)), true
}

// DistancePtr is Distance for optional points. It returns nil when either
// point is absent or invalid.
func DistancePtr(a, b *Point) *float64 {
	if a == nil || b == nil {
		return nil
	}
	km, ok := Distance(*a, *b)
	if !ok {
		return nil
	}
	return &km
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
