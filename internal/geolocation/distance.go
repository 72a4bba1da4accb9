package geolocation

import (
	"civic-reports/internal/models"

	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371e3

// Distance is the great-circle distance between a and b in metres.
func Distance(a, b models.Coordinates) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lng)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return la.Distance(lb).Radians() * earthRadiusMeters
}
