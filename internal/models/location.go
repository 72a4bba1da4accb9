package models

import "time"

// LocationSource names the picker strategy that produced a resolved location.
type LocationSource string

const (
	SourceManual LocationSource = "manual"
	SourceGPS    LocationSource = "gps"
	SourceSearch LocationSource = "search"
)

func (s LocationSource) Valid() bool {
	switch s {
	case SourceManual, SourceGPS, SourceSearch:
		return true
	}
	return false
}

// ResolvedLocation is what the picker hands to the report draft.
type ResolvedLocation struct {
	Address     string         `json:"address"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Accuracy    *float64       `json:"accuracy,omitempty"` // metres, GPS only
	Source      LocationSource `json:"source"`
}

// Position is a single device fix.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

func (p Position) Coordinates() Coordinates {
	return Coordinates{Lat: p.Lat, Lng: p.Lng}
}

// AddressData is the internal address record produced by the address search popup.
type AddressData struct {
	FullAddress  string   `json:"full_address"`
	RoadAddress  string   `json:"road_address"`
	JibunAddress string   `json:"jibun_address"`
	Sido         string   `json:"sido"`
	Sigungu      string   `json:"sigungu"`
	Roadname     string   `json:"roadname,omitempty"`
	BuildingName string   `json:"building_name,omitempty"`
	Zipcode      string   `json:"zipcode"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// DisplayAddress prefers the road-name address.
func (a AddressData) DisplayAddress() string {
	if a.RoadAddress != "" {
		return a.RoadAddress
	}
	return a.FullAddress
}

// GeocodingResult is a reverse-geocoded address.
type GeocodingResult struct {
	Address      string `json:"address"`
	RoadAddress  string `json:"road_address"`
	Region1      string `json:"region_1depth"` // 시도
	Region2      string `json:"region_2depth"` // 시군구
	Region3      string `json:"region_3depth"` // 읍면동
	BuildingName string `json:"building_name,omitempty"`
}

func (g GeocodingResult) DisplayAddress() string {
	if g.RoadAddress != "" {
		return g.RoadAddress
	}
	return g.Address
}

// LowAccuracyMeters is the GPS accuracy beyond which the fix is flagged to the resident.
const LowAccuracyMeters = 100

// LowAccuracy reports whether a GPS-resolved location is too coarse to trust.
func (l ResolvedLocation) LowAccuracy() bool {
	return l.Accuracy != nil && *l.Accuracy > LowAccuracyMeters
}
