package mapview

import (
	"sync"
	"testing"
	"time"

	"civic-reports/internal/models"
	"civic-reports/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	Marker
	onClick func()
}

// fakeProvider records every call so tests can assert on the map's state.
type fakeProvider struct {
	next    MarkerHandle
	markers map[MarkerHandle]fakeMarker
	popup   *MarkerHandle
	content string
	center  *models.Coordinates
	level   int
	bounds  *Bounds
	removed int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{markers: make(map[MarkerHandle]fakeMarker)}
}

func (f *fakeProvider) AddMarker(m Marker, onClick func()) MarkerHandle {
	f.next++
	f.markers[f.next] = fakeMarker{Marker: m, onClick: onClick}
	return f.next
}

func (f *fakeProvider) RemoveMarker(h MarkerHandle) {
	delete(f.markers, h)
	f.removed++
}

func (f *fakeProvider) OpenPopup(h MarkerHandle, content string) {
	f.popup = &h
	f.content = content
}

func (f *fakeProvider) ClosePopup() {
	f.popup = nil
	f.content = ""
}

func (f *fakeProvider) SetCenter(c models.Coordinates, level int) {
	f.center, f.level, f.bounds = &c, level, nil
}

func (f *fakeProvider) SetBounds(b Bounds) {
	f.center, f.level, f.bounds = nil, 0, &b
}

func (f *fakeProvider) clickReport(t *testing.T, id string) {
	t.Helper()
	for _, m := range f.markers {
		if m.ReportID == id {
			m.onClick()
			return
		}
	}
	t.Fatalf("no marker for report %s", id)
}

var centroid = models.Coordinates{Lat: 36.3527, Lng: 128.6972}

func coords(lat, lng float64) *models.Coordinates {
	return &models.Coordinates{Lat: lat, Lng: lng}
}

func rep(id string, u models.Urgency, c *models.Coordinates) models.Report {
	return models.Report{
		ID: id, Title: "title " + id, Description: "desc " + id, Location: "loc " + id,
		Urgency: u, Coordinates: c, CreatedAt: time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestMarkerCountMatchesReportsWithCoordinates(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)

	s.Sync([]models.Report{
		rep("1", models.UrgencyUrgent, coords(36.35, 128.70)),
		rep("2", models.UrgencyLow, nil),
		rep("3", models.UrgencyNormal, coords(36.34, 128.71)),
		rep("3", models.UrgencyNormal, coords(36.33, 128.72)),
	})

	assert.Len(t, p.markers, 3, "duplicate ids still get their own marker")
	assert.Equal(t, 3, s.MarkerCount())
}

func TestSyncTearsDownPreviousMarkers(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)

	s.Sync([]models.Report{rep("1", models.UrgencyUrgent, coords(1, 1)), rep("2", models.UrgencyLow, coords(2, 2))})
	s.Sync([]models.Report{rep("3", models.UrgencyLow, coords(3, 3))})

	assert.Equal(t, 2, p.removed)
	require.Len(t, p.markers, 1)
	for _, m := range p.markers {
		assert.Equal(t, "3", m.ReportID)
	}
}

func TestMarkerColorsByUrgency(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)

	s.Sync([]models.Report{
		rep("u", models.UrgencyUrgent, coords(1, 1)),
		rep("n", models.UrgencyNormal, coords(2, 2)),
		rep("l", models.UrgencyLow, coords(3, 3)),
	})

	want := map[string]string{"u": ColorUrgent, "n": ColorNormal, "l": ColorLow}
	for _, m := range p.markers {
		assert.Equal(t, want[m.ReportID], m.Color)
		assert.Equal(t, MarkerIcon(want[m.ReportID]), m.Icon)
	}
}

func TestViewportPolicy(t *testing.T) {
	t.Run("no placeable reports centers on fallback", func(t *testing.T) {
		p := newFakeProvider()
		NewSynchronizer(p, centroid, nil).Sync([]models.Report{rep("1", models.UrgencyLow, nil)})

		require.NotNil(t, p.center)
		assert.Equal(t, centroid, *p.center)
		assert.Equal(t, OverviewLevel, p.level)
	})

	t.Run("one report centers on it", func(t *testing.T) {
		p := newFakeProvider()
		NewSynchronizer(p, centroid, nil).Sync([]models.Report{
			rep("1", models.UrgencyLow, nil),
			rep("2", models.UrgencyUrgent, coords(36.3555, 128.7024)),
		})

		require.NotNil(t, p.center)
		assert.Equal(t, models.Coordinates{Lat: 36.3555, Lng: 128.7024}, *p.center)
		assert.Equal(t, FocusLevel, p.level)
	})

	t.Run("many reports fit bounds", func(t *testing.T) {
		p := newFakeProvider()
		pts := []*models.Coordinates{coords(36.30, 128.60), coords(36.40, 128.75), coords(36.35, 128.70)}
		NewSynchronizer(p, centroid, nil).Sync([]models.Report{
			rep("1", models.UrgencyLow, pts[0]),
			rep("2", models.UrgencyUrgent, pts[1]),
			rep("3", models.UrgencyNormal, pts[2]),
		})

		require.NotNil(t, p.bounds)
		assert.Nil(t, p.center)
		for _, c := range pts {
			assert.True(t, p.bounds.Contains(*c), "bounds %+v must contain %+v", *p.bounds, *c)
		}
		assert.InDelta(t, 36.30, p.bounds.SouthWest.Lat, 1e-9)
		assert.InDelta(t, 128.75, p.bounds.NorthEast.Lng, 1e-9)
	})
}

func TestClickOpensSharedPopupAndSelects(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)
	var selections []string
	s.OnSelect(func(id string) { selections = append(selections, id) })

	s.Sync([]models.Report{rep("1", models.UrgencyUrgent, coords(1, 1)), rep("2", models.UrgencyLow, coords(2, 2))})

	p.clickReport(t, "1")
	assert.Equal(t, "1", s.Selected())
	assert.Contains(t, p.content, "desc 1")
	assert.Contains(t, p.content, "2026-10-01 09:30")

	p.clickReport(t, "2")
	assert.Equal(t, "2", s.Selected())
	assert.Contains(t, p.content, "desc 2")
	assert.NotContains(t, p.content, "desc 1")

	p.clickReport(t, "2")
	assert.Equal(t, "", s.Selected())
	assert.Nil(t, p.popup)

	assert.Equal(t, []string{"1", "2", ""}, selections)
}

func TestSelectionSurvivesResyncAndDropsWhenHidden(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)
	var last = "unset"
	s.OnSelect(func(id string) { last = id })

	reports := []models.Report{rep("1", models.UrgencyUrgent, coords(1, 1)), rep("2", models.UrgencyLow, coords(2, 2))}
	s.Sync(reports)
	require.True(t, s.Select("1"))

	s.Sync(append(reports, rep("3", models.UrgencyLow, coords(3, 3))))
	assert.Equal(t, "1", s.Selected())
	require.NotNil(t, p.popup)
	assert.Equal(t, "1", p.markers[*p.popup].ReportID)

	s.SetFilter(models.UrgencyFilter(models.UrgencyLow))
	assert.Equal(t, "", s.Selected())
	assert.Equal(t, "", last)
	assert.Nil(t, p.popup)
}

func TestSelectWithoutMarker(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)
	s.Sync([]models.Report{rep("1", models.UrgencyLow, nil)})

	assert.False(t, s.Select("1"))
	assert.False(t, s.Select("nope"))
}

func TestStaleClickIgnored(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)
	s.Sync([]models.Report{rep("1", models.UrgencyUrgent, coords(1, 1))})

	var stale func()
	for _, m := range p.markers {
		stale = m.onClick
	}
	s.Sync([]models.Report{rep("2", models.UrgencyUrgent, coords(2, 2))})

	stale()
	assert.Equal(t, "", s.Selected())
}

func TestAttachFollowsStore(t *testing.T) {
	st := store.NewReportStore(centroid)
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)
	detach := s.Attach(st)

	st.AddReport(rep("a", models.UrgencyUrgent, coords(36.3555, 128.7024)))
	assert.Equal(t, 1, s.MarkerCount())
	for _, m := range p.markers {
		assert.Equal(t, ColorUrgent, m.Color)
	}

	st.AddReport(rep("b", models.UrgencyLow, nil))
	assert.Equal(t, 1, s.MarkerCount())
	assert.Equal(t, models.Coordinates{Lat: 36.3555, Lng: 128.7024}, st.Center())

	s.SetFilter(models.UrgencyFilter(models.UrgencyLow))
	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "b", visible[0].ID)
	assert.Equal(t, 0, s.MarkerCount())

	detach()
	st.AddReport(rep("c", models.UrgencyLow, coords(1, 1)))
	assert.Len(t, s.Visible(), 1)
}

func TestApplyIgnoresOlderSnapshot(t *testing.T) {
	p := newFakeProvider()
	s := NewSynchronizer(p, centroid, nil)

	s.apply(store.Snapshot{Version: 2, Reports: []models.Report{
		rep("a", models.UrgencyUrgent, coords(36.35, 128.69)),
		rep("b", models.UrgencyLow, coords(36.36, 128.70)),
	}})
	s.apply(store.Snapshot{Version: 1, Reports: []models.Report{
		rep("a", models.UrgencyUrgent, coords(36.35, 128.69)),
	}})

	assert.Equal(t, 2, s.MarkerCount())
	assert.Len(t, s.Visible(), 2)
}

// A mutation whose notification is delayed must not overwrite the map with its
// older snapshot once a later mutation has rendered.
func TestAttachIgnoresDelayedSnapshot(t *testing.T) {
	for trial := 0; trial < 10; trial++ {
		st := store.NewReportStore(centroid)

		paused := make(chan struct{})
		release := make(chan struct{})
		var once sync.Once
		// Subscribed first, so it runs before the synchronizer sees a snapshot.
		st.Subscribe(func(snap store.Snapshot) {
			if len(snap.Reports) == 1 {
				once.Do(func() {
					close(paused)
					<-release
				})
			}
		})

		s := NewSynchronizer(NewGeoJSONProvider(), centroid, nil)
		detach := s.Attach(st)

		done := make(chan struct{})
		go func() {
			defer close(done)
			st.AddReport(rep("a", models.UrgencyUrgent, coords(36.35, 128.69)))
		}()

		<-paused
		st.AddReport(rep("b", models.UrgencyLow, coords(36.36, 128.70)))
		close(release)
		<-done

		require.Equal(t, 2, s.MarkerCount(), "trial %d", trial)
		assert.Len(t, s.Visible(), 2)
		detach()
	}
}

func TestPopupContentEscapes(t *testing.T) {
	r := rep("1", models.UrgencyUrgent, nil)
	r.Title = "<script>alert(1)</script>"
	content := PopupContent(r)
	assert.NotContains(t, content, "<script>")
	assert.Contains(t, content, "&lt;script&gt;")
}
