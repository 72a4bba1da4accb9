package mapview

import (
	"sort"
	"sync"

	"civic-reports/internal/models"

	geojson "github.com/paulmach/go.geojson"
)

// Popup is the single shared info popup.
type Popup struct {
	ReportID string             `json:"report_id"`
	Position models.Coordinates `json:"position"`
	Content  string             `json:"content"`
}

// Viewport is either a center with a zoom level or a bounding box to fit.
type Viewport struct {
	Center *models.Coordinates `json:"center,omitempty"`
	Level  int                 `json:"level,omitempty"`
	Bounds *Bounds             `json:"bounds,omitempty"`
}

// Scene is everything a web map needs to draw the current state.
type Scene struct {
	Markers  *geojson.FeatureCollection `json:"markers"`
	Popup    *Popup                     `json:"popup"`
	Viewport Viewport                   `json:"viewport"`
}

type geoMarker struct {
	Marker
	onClick func()
}

// GeoJSONProvider keeps the map scene in memory and serves it as GeoJSON.
type GeoJSONProvider struct {
	mu       sync.Mutex
	next     MarkerHandle
	markers  map[MarkerHandle]geoMarker
	popup    *Popup
	viewport Viewport
}

func NewGeoJSONProvider() *GeoJSONProvider {
	return &GeoJSONProvider{markers: make(map[MarkerHandle]geoMarker)}
}

func (p *GeoJSONProvider) AddMarker(m Marker, onClick func()) MarkerHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.markers[p.next] = geoMarker{Marker: m, onClick: onClick}
	return p.next
}

func (p *GeoJSONProvider) RemoveMarker(h MarkerHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.markers, h)
}

func (p *GeoJSONProvider) OpenPopup(h MarkerHandle, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.markers[h]
	if !ok {
		return
	}
	p.popup = &Popup{ReportID: m.ReportID, Position: m.Position, Content: content}
}

func (p *GeoJSONProvider) ClosePopup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.popup = nil
}

func (p *GeoJSONProvider) SetCenter(c models.Coordinates, level int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = Viewport{Center: &c, Level: level}
}

func (p *GeoJSONProvider) SetBounds(b Bounds) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = Viewport{Bounds: &b}
}

// Click fires the click handler of the first marker placed for reportID, the way
// a user tapping it on the map would.
func (p *GeoJSONProvider) Click(reportID string) bool {
	p.mu.Lock()
	var (
		fn   func()
		best MarkerHandle
	)
	for h, m := range p.markers {
		if m.ReportID == reportID && (fn == nil || h < best) {
			fn, best = m.onClick, h
		}
	}
	p.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Scene renders the markers in placement order.
func (p *GeoJSONProvider) Scene() Scene {
	p.mu.Lock()
	defer p.mu.Unlock()

	handles := make([]MarkerHandle, 0, len(p.markers))
	for h := range p.markers {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	fc := geojson.NewFeatureCollection()
	for _, h := range handles {
		m := p.markers[h]
		f := geojson.NewPointFeature([]float64{m.Position.Lng, m.Position.Lat})
		f.ID = m.ReportID
		f.SetProperty("report_id", m.ReportID)
		f.SetProperty("title", m.Title)
		f.SetProperty("urgency", string(m.Urgency))
		f.SetProperty("color", m.Color)
		f.SetProperty("icon", m.Icon)
		fc.AddFeature(f)
	}

	scene := Scene{Markers: fc, Viewport: p.viewport}
	if p.popup != nil {
		popup := *p.popup
		scene.Popup = &popup
	}
	return scene
}
