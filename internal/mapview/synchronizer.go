package mapview

import (
	"sync"

	"civic-reports/internal/models"
	"civic-reports/internal/store"

	"go.uber.org/zap"
)

type placedMarker struct {
	report models.Report
	handle MarkerHandle
}

// Synchronizer rebuilds every marker whenever the report list changes. Marker
// counts are a single municipality's worth, so there is no diffing by id.
type Synchronizer struct {
	mu       sync.Mutex
	provider MapProvider
	fallback models.Coordinates
	logr     *zap.Logger

	filter     models.UrgencyFilter
	reports    []models.Report // last input, unfiltered
	version    uint64          // store version of reports
	visible    []models.Report
	markers    []placedMarker
	generation int
	selected   string

	onSelect func(reportID string)
}

// NewSynchronizer renders onto provider. fallback is where the map rests when
// no visible report has coordinates.
func NewSynchronizer(provider MapProvider, fallback models.Coordinates, logr *zap.Logger) *Synchronizer {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Synchronizer{
		provider: provider,
		fallback: fallback,
		logr:     logr,
		filter:   models.FilterAll,
	}
}

// OnSelect registers a callback fired when the selected report changes; an
// empty id means nothing is selected.
func (s *Synchronizer) OnSelect(fn func(reportID string)) {
	s.mu.Lock()
	s.onSelect = fn
	s.mu.Unlock()
}

// Attach renders the store's current contents and follows every later change.
// Snapshots older than the one already rendered are ignored.
func (s *Synchronizer) Attach(st *store.ReportStore) (detach func()) {
	s.mu.Lock()
	s.version = 0
	s.mu.Unlock()

	unsubscribe := st.Subscribe(s.apply)
	s.apply(st.Snapshot())
	return unsubscribe
}

func (s *Synchronizer) apply(snap store.Snapshot) {
	s.mu.Lock()
	if rendered := s.version; snap.Version < rendered {
		s.mu.Unlock()
		s.logr.Debug("stale report snapshot dropped",
			zap.Uint64("version", snap.Version), zap.Uint64("rendered", rendered))
		return
	}
	s.version = snap.Version
	s.reports = snap.Reports
	s.render()
}

// Sync replaces the input list and re-renders.
func (s *Synchronizer) Sync(reports []models.Report) {
	s.mu.Lock()
	s.reports = reports
	s.render()
}

// SetFilter changes which urgency is shown and re-renders.
func (s *Synchronizer) SetFilter(f models.UrgencyFilter) {
	s.mu.Lock()
	s.filter = f
	s.render()
}

func (s *Synchronizer) Filter() models.UrgencyFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Selected returns the id of the report whose popup is open.
func (s *Synchronizer) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Visible returns the filtered input as last rendered.
func (s *Synchronizer) Visible() []models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Report, len(s.visible))
	copy(out, s.visible)
	return out
}

// MarkerCount is the number of markers currently placed.
func (s *Synchronizer) MarkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers)
}

// Select behaves like a click on the report's marker. It returns false when the
// report has no marker on the map.
func (s *Synchronizer) Select(reportID string) bool {
	s.mu.Lock()
	idx := s.markerIndexLocked(reportID)
	gen := s.generation
	s.mu.Unlock()
	if idx < 0 {
		return false
	}
	s.click(gen, idx)
	return true
}

// render must be entered with s.mu held; it releases it before notifying.
func (s *Synchronizer) render() {
	dropped := s.rebuildLocked()
	cb, sel := s.onSelect, s.selected
	s.mu.Unlock()

	if dropped && cb != nil {
		cb(sel)
	}
}

// rebuildLocked tears down and recreates every marker, then fixes the viewport.
// It reports whether the selection was dropped.
func (s *Synchronizer) rebuildLocked() bool {
	for _, m := range s.markers {
		s.provider.RemoveMarker(m.handle)
	}
	s.provider.ClosePopup()
	s.markers = s.markers[:0]
	s.generation++
	gen := s.generation

	s.visible = store.Filter(s.reports, s.filter)

	placed := make([]models.Coordinates, 0, len(s.visible))
	for _, r := range s.visible {
		if r.Coordinates == nil {
			continue
		}
		idx := len(s.markers)
		color := MarkerColor(r.Urgency)
		h := s.provider.AddMarker(Marker{
			ReportID: r.ID,
			Position: *r.Coordinates,
			Title:    r.Title,
			Urgency:  r.Urgency,
			Color:    color,
			Icon:     MarkerIcon(color),
		}, func() { s.click(gen, idx) })
		s.markers = append(s.markers, placedMarker{report: r, handle: h})
		placed = append(placed, *r.Coordinates)
	}

	dropped := false
	if s.selected != "" {
		if idx := s.markerIndexLocked(s.selected); idx >= 0 {
			m := s.markers[idx]
			s.provider.OpenPopup(m.handle, PopupContent(m.report))
		} else {
			s.selected = ""
			dropped = true
		}
	}

	switch len(placed) {
	case 0:
		s.provider.SetCenter(s.fallback, OverviewLevel)
	case 1:
		s.provider.SetCenter(placed[0], FocusLevel)
	default:
		b, _ := BoundsOf(placed)
		s.provider.SetBounds(b)
	}

	s.logr.Debug("map markers rebuilt",
		zap.Int("reports", len(s.reports)),
		zap.Int("visible", len(s.visible)),
		zap.Int("markers", len(placed)),
		zap.String("filter", string(s.filter)))

	return dropped
}

// click toggles the popup for a marker: clicking the selected marker closes it.
// Clicks on markers from an earlier render are ignored.
func (s *Synchronizer) click(gen, idx int) {
	s.mu.Lock()
	if gen != s.generation || idx >= len(s.markers) {
		s.mu.Unlock()
		return
	}
	m := s.markers[idx]
	if s.selected == m.report.ID {
		s.provider.ClosePopup()
		s.selected = ""
	} else {
		s.provider.OpenPopup(m.handle, PopupContent(m.report))
		s.selected = m.report.ID
	}
	cb, sel := s.onSelect, s.selected
	s.mu.Unlock()

	if cb != nil {
		cb(sel)
	}
}

func (s *Synchronizer) markerIndexLocked(reportID string) int {
	for i, m := range s.markers {
		if m.report.ID == reportID {
			return i
		}
	}
	return -1
}
