package geo

import "math"

// EarthRadius is the mean earth radius in meters used by Distance.
const EarthRadius = 6_371_000.0

// Coordinate is a point on the earth's surface in degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude) - toRadians(a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h just outside [0, 1] near the antipode
	h = math.Min(1, math.Max(0, h))
	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DistanceTo is a convenience wrapper around Distance.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return Distance(c, other)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
