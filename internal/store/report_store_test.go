package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"civic-reports/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fallback = models.Coordinates{Lat: 36.3527, Lng: 128.6972}

func report(id string, u models.Urgency, coords *models.Coordinates) models.Report {
	return models.Report{ID: id, Description: "desc " + id, Location: "loc " + id, Urgency: u, Coordinates: coords}
}

func TestAddReportPreservesOrder(t *testing.T) {
	s := NewReportStore(fallback)

	for i := 0; i < 20; i++ {
		s.AddReport(report(fmt.Sprint(i), models.UrgencyNormal, nil))
	}

	got := s.Reports()
	require.Len(t, got, 20)
	for i, r := range got {
		assert.Equal(t, fmt.Sprint(i), r.ID)
	}
}

func TestAddReportMovesCenterOnlyWithCoordinates(t *testing.T) {
	s := NewReportStore(fallback)
	a := &models.Coordinates{Lat: 36.3555, Lng: 128.7024}

	s.AddReport(report("a", models.UrgencyUrgent, a))
	assert.Equal(t, *a, s.Center())

	s.AddReport(report("b", models.UrgencyLow, nil))
	assert.Equal(t, *a, s.Center(), "report without coordinates must not move the center")
}

func TestAddReportDoesNotDeduplicate(t *testing.T) {
	s := NewReportStore(fallback)
	s.AddReport(report("x", models.UrgencyLow, nil))
	s.AddReport(report("x", models.UrgencyLow, nil))
	assert.Equal(t, 2, s.Len())
}

func TestClearKeepsCenter(t *testing.T) {
	s := NewReportStore(fallback)
	p := models.Coordinates{Lat: 1, Lng: 2}
	s.AddReport(report("a", models.UrgencyUrgent, &p))

	s.Clear()

	assert.Empty(t, s.Reports())
	assert.Equal(t, p, s.Center())
}

func TestSetCenterOverwrites(t *testing.T) {
	s := NewReportStore(fallback)
	s.SetCenter(models.Coordinates{Lat: 999, Lng: -999})
	assert.Equal(t, models.Coordinates{Lat: 999, Lng: -999}, s.Center())
}

func TestReportsSnapshotIsIsolated(t *testing.T) {
	s := NewReportStore(fallback)
	in := report("a", models.UrgencyUrgent, &models.Coordinates{Lat: 36.35, Lng: 128.69})
	in.Images = []models.Image{{Name: "a.png", ContentType: "image/png"}}
	s.AddReport(in)

	// The caller's report is copied on insert.
	in.Coordinates.Lat = 0
	in.Images[0].Name = "caller.png"

	snap := s.Reports()
	snap[0].ID = "mutated"
	snap[0].Coordinates.Lat = 1
	snap[0].Images[0].Name = "mutated.png"
	snap = append(snap, report("b", models.UrgencyLow, nil))

	got := s.Reports()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	r, ok := s.Get("a")
	require.True(t, ok)
	require.NotNil(t, r.Coordinates)
	assert.Equal(t, 36.35, r.Coordinates.Lat)
	require.Len(t, r.Images, 1)
	assert.Equal(t, "a.png", r.Images[0].Name)

	r.Coordinates.Lat = 2
	r.Images[0].Name = "get.png"
	again, _ := s.Get("a")
	assert.Equal(t, 36.35, again.Coordinates.Lat)
	assert.Equal(t, "a.png", again.Images[0].Name)
}

func TestListenersGetSeparateCopies(t *testing.T) {
	s := NewReportStore(fallback)
	var second Snapshot
	s.Subscribe(func(snap Snapshot) { snap.Reports[0].Coordinates.Lat = -1 })
	s.Subscribe(func(snap Snapshot) { second = snap })

	s.AddReport(report("a", models.UrgencyUrgent, &models.Coordinates{Lat: 36.35, Lng: 128.69}))

	require.Len(t, second.Reports, 1)
	assert.Equal(t, 36.35, second.Reports[0].Coordinates.Lat)
	r, _ := s.Get("a")
	assert.Equal(t, 36.35, r.Coordinates.Lat)
}

func TestGet(t *testing.T) {
	s := NewReportStore(fallback, DemoReports(time.Now())...)

	r, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, "도로에 쓰레기가 많아요.", r.Description)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	s := NewReportStore(fallback)

	var got [][]models.Report
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap.Reports)
	})

	s.AddReport(report("a", models.UrgencyUrgent, nil))
	s.AddReport(report("b", models.UrgencyLow, nil))
	s.Clear()

	require.Len(t, got, 3)
	assert.Len(t, got[0], 1)
	assert.Len(t, got[1], 2)
	assert.Empty(t, got[2])

	unsubscribe()
	unsubscribe()
	s.AddReport(report("c", models.UrgencyLow, nil))
	assert.Len(t, got, 3)
}

func TestListenerMayReadStore(t *testing.T) {
	s := NewReportStore(fallback)
	var seen int
	s.Subscribe(func(Snapshot) { seen = s.Len() })

	s.AddReport(report("a", models.UrgencyUrgent, nil))
	assert.Equal(t, 1, seen)
}

func TestSnapshotVersionIncreases(t *testing.T) {
	s := NewReportStore(fallback)
	var versions []uint64
	s.Subscribe(func(snap Snapshot) { versions = append(versions, snap.Version) })

	s.AddReport(report("a", models.UrgencyUrgent, nil))
	s.SetCenter(models.Coordinates{Lat: 1, Lng: 2})
	s.Clear()

	require.Len(t, versions, 3)
	assert.Less(t, versions[0], versions[1])
	assert.Less(t, versions[1], versions[2])

	snap := s.Snapshot()
	assert.Equal(t, versions[2], snap.Version)
	assert.Empty(t, snap.Reports)
	assert.Equal(t, models.Coordinates{Lat: 1, Lng: 2}, snap.Center)
}

func TestConcurrentAdds(t *testing.T) {
	s := NewReportStore(fallback)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AddReport(report(fmt.Sprint(i), models.UrgencyNormal, nil))
			_ = s.Reports()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
