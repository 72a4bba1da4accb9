package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"civic-reports/internal/address"
	"civic-reports/internal/geocode"
	"civic-reports/internal/geolocation"
	"civic-reports/internal/location"
	"civic-reports/internal/models"

	"go.uber.org/zap"
)

var ErrNoDeviceFeed = errors.New("device position feed not configured")

// DeviceSource hands out position sources for registered field devices.
type DeviceSource interface {
	Device(deviceID string) geolocation.Device
}

// ResolveRequest carries one picker interaction. For gps, either Position (or the
// browser's ErrorCode) or a DeviceID on the position feed is given; for search,
// the popup outcome.
type ResolveRequest struct {
	Mode      models.LocationSource `json:"mode"`
	Address   string                `json:"address,omitempty"`
	Position  *models.Position      `json:"position,omitempty"`
	ErrorCode int                   `json:"error_code,omitempty"`
	DeviceID  string                `json:"device_id,omitempty"`
	Search    *address.PopupOutcome `json:"search,omitempty"`
}

type ResolveResult struct {
	Resolved    bool                     `json:"resolved"`
	Location    *models.ResolvedLocation `json:"location,omitempty"`
	LowAccuracy bool                     `json:"low_accuracy"`
}

// LocationService runs the location picker for form requests and streams device
// positions.
type LocationService struct {
	geocoder geocode.Geocoder
	devices  DeviceSource
	timeout  time.Duration
	logr     *zap.Logger

	mu      sync.Mutex
	watches map[*geolocation.Service]struct{}
}

func NewLocationService(geocoder geocode.Geocoder, devices DeviceSource, timeout time.Duration, logr *zap.Logger) *LocationService {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &LocationService{
		geocoder: geocoder,
		devices:  devices,
		timeout:  timeout,
		logr:     logr,
		watches:  make(map[*geolocation.Service]struct{}),
	}
}

// Resolve selects req.Mode on a fresh picker and returns what it resolved to.
func (s *LocationService) Resolve(ctx context.Context, req ResolveRequest) (ResolveResult, error) {
	picker, err := s.pickerFor(req)
	if err != nil {
		return ResolveResult{}, err
	}

	var (
		loc models.ResolvedLocation
		ok  bool
	)
	switch req.Mode {
	case models.SourceManual:
		loc, ok = picker.SelectManual(req.Address)
	case models.SourceGPS:
		loc, err = picker.SelectGPS(ctx)
		ok = err == nil
	case models.SourceSearch:
		loc, ok, err = picker.SelectSearch(ctx)
	default:
		return ResolveResult{}, fmt.Errorf("unknown location mode %q", req.Mode)
	}
	if err != nil {
		return ResolveResult{}, err
	}
	if !ok {
		return ResolveResult{Resolved: false}, nil
	}
	return ResolveResult{Resolved: true, Location: &loc, LowAccuracy: loc.LowAccuracy()}, nil
}

func (s *LocationService) pickerFor(req ResolveRequest) (*location.Picker, error) {
	var device geolocation.Device = geolocation.FixDevice{Fix: req.Position, ErrorCode: req.ErrorCode}
	if req.Mode == models.SourceGPS && req.DeviceID != "" {
		if s.devices == nil {
			return nil, ErrNoDeviceFeed
		}
		device = s.devices.Device(req.DeviceID)
	}

	var popup address.Picker = address.PayloadPicker{}
	if req.Search != nil {
		popup = address.PayloadPicker{Outcome: *req.Search}
	}

	locator := geolocation.NewService(device, s.timeout, s.logr)
	return location.NewPicker(locator, s.geocoder, popup, "", s.logr), nil
}

// WatchDevice streams a device's fixes until the returned stop func is called.
func (s *LocationService) WatchDevice(deviceID string, onPosition func(models.Position), onError func(error)) (stop func(), err error) {
	if s.devices == nil {
		return nil, ErrNoDeviceFeed
	}
	svc := geolocation.NewService(s.devices.Device(deviceID), s.timeout, s.logr)
	id, err := svc.Watch(onPosition, onError)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.watches[svc] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			svc.StopWatching(id)
			s.mu.Lock()
			delete(s.watches, svc)
			s.mu.Unlock()
		})
	}, nil
}

// StopAll ends every running device watch.
func (s *LocationService) StopAll() {
	s.mu.Lock()
	services := make([]*geolocation.Service, 0, len(s.watches))
	for svc := range s.watches {
		services = append(services, svc)
	}
	s.watches = make(map[*geolocation.Service]struct{})
	s.mu.Unlock()

	for _, svc := range services {
		svc.StopAll()
	}
}

func (s *LocationService) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}
