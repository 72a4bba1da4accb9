package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"civic-reports/internal/address"
	"civic-reports/internal/geolocation"
	"civic-reports/internal/location"
	"civic-reports/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	coords  *models.Coordinates
	reverse *models.GeocodingResult
	err     error
}

func (g stubGeocoder) Geocode(context.Context, string) (*models.Coordinates, error) {
	return g.coords, g.err
}

func (g stubGeocoder) ReverseGeocode(context.Context, float64, float64) (*models.GeocodingResult, error) {
	return g.reverse, g.err
}

type stubSubscription struct{ stop func() }

func (s stubSubscription) Stop() { s.stop() }

// pushDevice hands each watcher's callbacks to the test.
type pushDevice struct {
	mu       sync.Mutex
	fix      models.Position
	watchers []func(models.Position)
	stopped  int
}

func (d *pushDevice) Position(context.Context) (models.Position, error) {
	return d.fix, nil
}

func (d *pushDevice) Watch(_ context.Context, onPosition func(models.Position), _ func(error)) (geolocation.Subscription, error) {
	d.mu.Lock()
	d.watchers = append(d.watchers, onPosition)
	d.mu.Unlock()
	return stubSubscription{stop: func() {
		d.mu.Lock()
		d.stopped++
		d.mu.Unlock()
	}}, nil
}

type deviceMap map[string]geolocation.Device

func (m deviceMap) Device(id string) geolocation.Device { return m[id] }

func TestResolveManual(t *testing.T) {
	svc := NewLocationService(nil, nil, time.Second, nil)

	res, err := svc.Resolve(context.Background(), ResolveRequest{Mode: models.SourceManual, Address: "의성읍 충효로 88"})
	require.NoError(t, err)
	require.True(t, res.Resolved)
	assert.Equal(t, "의성읍 충효로 88", res.Location.Address)
	assert.Nil(t, res.Location.Coordinates)

	res, err = svc.Resolve(context.Background(), ResolveRequest{Mode: models.SourceManual, Address: " "})
	require.NoError(t, err)
	assert.False(t, res.Resolved)
}

func TestResolveGPSFix(t *testing.T) {
	geo := stubGeocoder{reverse: &models.GeocodingResult{Address: "경상북도 의성군 의성읍 중리리 1", RoadAddress: "경상북도 의성군 의성읍 충효로 88"}}
	svc := NewLocationService(geo, nil, time.Second, nil)

	res, err := svc.Resolve(context.Background(), ResolveRequest{
		Mode:     models.SourceGPS,
		Position: &models.Position{Lat: 36.3555, Lng: 128.7024, Accuracy: 250},
	})
	require.NoError(t, err)
	require.True(t, res.Resolved)
	assert.Equal(t, "경상북도 의성군 의성읍 충효로 88", res.Location.Address)
	require.NotNil(t, res.Location.Coordinates)
	assert.InDelta(t, 36.3555, res.Location.Coordinates.Lat, 1e-9)
	assert.True(t, res.LowAccuracy)
}

func TestResolveGPSErrorCode(t *testing.T) {
	svc := NewLocationService(nil, nil, time.Second, nil)

	_, err := svc.Resolve(context.Background(), ResolveRequest{Mode: models.SourceGPS, ErrorCode: geolocation.CodePermissionDenied})
	require.Error(t, err)
	assert.ErrorIs(t, err, geolocation.ErrPermissionDenied)
	var merr *location.ModeError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, models.SourceGPS, merr.Mode)
}

func TestResolveGPSFromDeviceFeed(t *testing.T) {
	dev := &pushDevice{fix: models.Position{Lat: 36.34, Lng: 128.70, Accuracy: 20}}
	svc := NewLocationService(nil, deviceMap{"truck-7": dev}, time.Second, nil)

	res, err := svc.Resolve(context.Background(), ResolveRequest{Mode: models.SourceGPS, DeviceID: "truck-7"})
	require.NoError(t, err)
	require.True(t, res.Resolved)
	assert.Equal(t, "Lat 36.34000, Lng 128.70000", res.Location.Address)
	assert.False(t, res.LowAccuracy)

	noFeed := NewLocationService(nil, nil, time.Second, nil)
	_, err = noFeed.Resolve(context.Background(), ResolveRequest{Mode: models.SourceGPS, DeviceID: "truck-7"})
	assert.ErrorIs(t, err, ErrNoDeviceFeed)
}

func TestResolveSearch(t *testing.T) {
	coords := &models.Coordinates{Lat: 36.3445, Lng: 128.7048}
	svc := NewLocationService(stubGeocoder{coords: coords}, nil, time.Second, nil)

	res, err := svc.Resolve(context.Background(), ResolveRequest{
		Mode: models.SourceSearch,
		Search: &address.PopupOutcome{
			State:  address.StateComplete,
			Result: &address.PostcodeResult{Address: "경상북도 의성군 봉양면 봉호로 14"},
		},
	})
	require.NoError(t, err)
	require.True(t, res.Resolved)
	assert.Equal(t, models.SourceSearch, res.Location.Source)
	assert.Equal(t, coords, res.Location.Coordinates)
}

func TestResolveSearchCancelled(t *testing.T) {
	svc := NewLocationService(nil, nil, time.Second, nil)

	for _, req := range []ResolveRequest{
		{Mode: models.SourceSearch},
		{Mode: models.SourceSearch, Search: &address.PopupOutcome{State: address.StateForceClose}},
	} {
		res, err := svc.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, res.Resolved)
		assert.Nil(t, res.Location)
	}
}

func TestResolveUnknownMode(t *testing.T) {
	svc := NewLocationService(nil, nil, time.Second, nil)
	_, err := svc.Resolve(context.Background(), ResolveRequest{Mode: "satellite"})
	assert.Error(t, err)
}

func TestWatchDeviceStopAndStopAll(t *testing.T) {
	dev := &pushDevice{}
	svc := NewLocationService(nil, deviceMap{"a": dev, "b": dev}, time.Second, nil)

	var got []models.Position
	stopA, err := svc.WatchDevice("a", func(p models.Position) { got = append(got, p) }, nil)
	require.NoError(t, err)
	_, err = svc.WatchDevice("b", func(models.Position) {}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.ActiveWatches())

	dev.watchers[0](models.Position{Lat: 1, Lng: 2})
	require.Len(t, got, 1)

	stopA()
	stopA()
	assert.Equal(t, 1, svc.ActiveWatches())
	assert.Equal(t, 1, dev.stopped)

	svc.StopAll()
	assert.Zero(t, svc.ActiveWatches())
	assert.Equal(t, 2, dev.stopped)
}

func TestWatchDeviceWithoutFeed(t *testing.T) {
	svc := NewLocationService(nil, nil, time.Second, nil)
	_, err := svc.WatchDevice("a", func(models.Position) {}, nil)
	assert.ErrorIs(t, err, ErrNoDeviceFeed)
}
