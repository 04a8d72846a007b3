// README: Pure geographic computation helpers (Haversine + fare model).
package geo

import (
	"math"

	"tripsim/internal/types"
)

const earthRadiusKm = 6371.0

// Fixed-rate estimate model: minutes and fare scale linearly with the
// great-circle distance. Replaceable (see matching.RouteEstimator).
const (
	minutesPerKm = 3
	farePerKm    = 350
)

// DistanceKm returns the great-circle distance in kilometres between two
// points, rounded to one decimal place.
func DistanceKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLon := degreesToRadians(b.Lon - a.Lon)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusKm*c*10) / 10
}

// DurationMin estimates travel time in whole minutes for a distance in km.
func DurationMin(distanceKm float64) int {
	return int(math.Round(distanceKm * minutesPerKm))
}

// Fare estimates the trip fare for a distance in km.
func Fare(distanceKm float64) int {
	return int(math.Round(distanceKm * farePerKm))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
