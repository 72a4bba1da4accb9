// Package mapview keeps rendered map markers in step with the report collection.
//
// The map itself sits behind MapProvider so the synchronization rules can run
// against any renderer. GeoJSONProvider is the one the HTTP API serves.
package mapview

import "civic-reports/internal/models"

// Zoom levels, in the Kakao sense: lower is closer.
const (
	FocusLevel    = 4
	OverviewLevel = 9
)

// MarkerHandle identifies a marker placed by a provider.
type MarkerHandle int

type Marker struct {
	ReportID string
	Position models.Coordinates
	Title    string
	Urgency  models.Urgency
	Color    string
	Icon     string // image data URI
}

type Bounds struct {
	SouthWest models.Coordinates `json:"south_west"`
	NorthEast models.Coordinates `json:"north_east"`
}

// boundsEpsilon absorbs the degree/radian round trip.
const boundsEpsilon = 1e-9

// Contains reports whether c lies inside b. Bounds never cross the antimeridian
// in this deployment.
func (b Bounds) Contains(c models.Coordinates) bool {
	return c.Lat >= b.SouthWest.Lat-boundsEpsilon && c.Lat <= b.NorthEast.Lat+boundsEpsilon &&
		c.Lng >= b.SouthWest.Lng-boundsEpsilon && c.Lng <= b.NorthEast.Lng+boundsEpsilon
}

// MapProvider is the rendering side of the map. Implementations must not invoke a
// marker's onClick while holding their own locks.
type MapProvider interface {
	AddMarker(m Marker, onClick func()) MarkerHandle
	RemoveMarker(h MarkerHandle)
	// OpenPopup shows content on the single shared popup, anchored at h.
	OpenPopup(h MarkerHandle, content string)
	ClosePopup()
	SetCenter(c models.Coordinates, level int)
	SetBounds(b Bounds)
}
