package mapview

import (
	"civic-reports/internal/models"

	"github.com/golang/geo/s2"
)

// BoundsOf returns the smallest lat/lng rectangle containing every point.
func BoundsOf(points []models.Coordinates) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	rect := s2.EmptyRect()
	for _, p := range points {
		rect = rect.AddPoint(s2.LatLngFromDegrees(p.Lat, p.Lng))
	}
	lo, hi := rect.Lo(), rect.Hi()
	return Bounds{
		SouthWest: models.Coordinates{Lat: lo.Lat.Degrees(), Lng: lo.Lng.Degrees()},
		NorthEast: models.Coordinates{Lat: hi.Lat.Degrees(), Lng: hi.Lng.Degrees()},
	}, true
}
