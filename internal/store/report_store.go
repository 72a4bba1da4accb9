package store

import (
	"maps"
	"slices"
	"sync"

	"civic-reports/internal/models"
)

// Snapshot is the collection and center as of one mutation. Version grows by one
// with every mutation, so a listener that sees an older version than it already
// handled can drop it.
type Snapshot struct {
	Version uint64
	Reports []models.Report
	Center  models.Coordinates
}

// Listener receives a fresh snapshot after every mutation. Listeners run on the
// mutating goroutine, so concurrent mutations may deliver out of order.
type Listener func(snap Snapshot)

// ReportStore is the session-scoped collection of submitted reports plus the map's
// focal point. It never validates: callers hand it reports they already checked.
type ReportStore struct {
	mu        sync.RWMutex
	reports   []models.Report
	center    models.Coordinates
	version   uint64
	listeners map[int]Listener
	nextID    int
}

// NewReportStore returns an empty store centered on center.
func NewReportStore(center models.Coordinates, seed ...models.Report) *ReportStore {
	s := &ReportStore{
		center:    center,
		listeners: make(map[int]Listener),
	}
	for _, r := range seed {
		s.reports = append(s.reports, r.Clone())
	}
	return s
}

// AddReport appends a copy of r. When r has coordinates the center moves to them.
func (s *ReportStore) AddReport(r models.Report) {
	r = r.Clone()
	s.mu.Lock()
	s.reports = append(s.reports, r)
	if r.Coordinates != nil {
		s.center = *r.Coordinates
	}
	s.version++
	s.mu.Unlock()

	s.notify()
}

// SetCenter overwrites the focal point.
func (s *ReportStore) SetCenter(p models.Coordinates) {
	s.mu.Lock()
	s.center = p
	s.version++
	s.mu.Unlock()

	s.notify()
}

// Clear empties the collection. The center is left where it was.
func (s *ReportStore) Clear() {
	s.mu.Lock()
	s.reports = nil
	s.version++
	s.mu.Unlock()

	s.notify()
}

// Reports returns a copy of the collection in insertion order.
func (s *ReportStore) Reports() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reportsLocked()
}

// Snapshot returns the current collection, center and version together.
func (s *ReportStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *ReportStore) Center() models.Coordinates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.center
}

// Get finds a report by id.
func (s *ReportStore) Get(id string) (models.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.reports {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return models.Report{}, false
}

func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

// Subscribe registers fn and returns a func that removes it.
func (s *ReportStore) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// notify runs listeners outside the lock so they may read the store. Listeners
// run in subscription order and each gets its own copy of the reports.
func (s *ReportStore) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, id := range slices.Sorted(maps.Keys(s.listeners)) {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.RUnlock()

	base := snap.Reports
	for _, l := range listeners {
		snap.Reports = cloneAll(base)
		l(snap)
	}
}

func (s *ReportStore) snapshotLocked() Snapshot {
	return Snapshot{Version: s.version, Reports: s.reportsLocked(), Center: s.center}
}

func (s *ReportStore) reportsLocked() []models.Report {
	return cloneAll(s.reports)
}

func cloneAll(reports []models.Report) []models.Report {
	out := make([]models.Report, len(reports))
	for i, r := range reports {
		out[i] = r.Clone()
	}
	return out
}
