// Package location merges the three ways a resident can say where a problem is
// (typed text, device GPS, address search) into one resolved location.
//
// Exactly one mode is active at a time and the resolved value is always read
// from that mode alone. Async results that land after the resident switched
// modes are dropped.
package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"civic-reports/internal/address"
	"civic-reports/internal/geocode"
	"civic-reports/internal/metrics"
	"civic-reports/internal/models"

	"go.uber.org/zap"
)

// ErrSuperseded is returned by an async selection whose mode was replaced before
// it finished.
var ErrSuperseded = errors.New("location mode changed while resolving")

// ModeError is a failure surfaced inline for one mode. The form stays editable.
type ModeError struct {
	Mode models.LocationSource
	Err  error
}

func (e *ModeError) Error() string { return fmt.Sprintf("%s location: %v", e.Mode, e.Err) }
func (e *ModeError) Unwrap() error { return e.Err }

// Locator fetches a one-shot device fix; geolocation.Service implements it.
type Locator interface {
	CurrentPosition(ctx context.Context) (models.Position, error)
}

type Picker struct {
	locator   Locator
	geocoder  geocode.Geocoder
	addresses address.Picker
	logr      *zap.Logger

	mu         sync.Mutex
	mode       models.LocationSource
	manual     string
	gps        *models.ResolvedLocation
	search     *models.ResolvedLocation
	generation int
	lastErr    error
	onResolve  func(models.ResolvedLocation)
}

// NewPicker starts in manual mode with initialAddress as the typed text.
func NewPicker(locator Locator, geocoder geocode.Geocoder, addresses address.Picker, initialAddress string, logr *zap.Logger) *Picker {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Picker{
		locator:   locator,
		geocoder:  geocoder,
		addresses: addresses,
		logr:      logr,
		mode:      models.SourceManual,
		manual:    initialAddress,
	}
}

// OnResolve registers the callback that receives every resolved location.
func (p *Picker) OnResolve(fn func(models.ResolvedLocation)) {
	p.mu.Lock()
	p.onResolve = fn
	p.mu.Unlock()
}

func (p *Picker) Mode() models.LocationSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Err is the inline error of the active mode, if any.
func (p *Picker) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Current reads the resolved location of the active mode.
func (p *Picker) Current() (models.ResolvedLocation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *Picker) currentLocked() (models.ResolvedLocation, bool) {
	switch p.mode {
	case models.SourceManual:
		if strings.TrimSpace(p.manual) == "" {
			return models.ResolvedLocation{}, false
		}
		return models.ResolvedLocation{Address: p.manual, Source: models.SourceManual}, true
	case models.SourceGPS:
		if p.gps != nil {
			return *p.gps, true
		}
	case models.SourceSearch:
		if p.search != nil {
			return *p.search, true
		}
	}
	return models.ResolvedLocation{}, false
}

// activate switches mode and invalidates whatever async step was in flight.
func (p *Picker) activate(mode models.LocationSource) int {
	p.mode = mode
	p.generation++
	p.lastErr = nil
	return p.generation
}

// SelectManual makes the typed text the resolved address. Coordinates are never
// attached to manual input.
func (p *Picker) SelectManual(text string) (models.ResolvedLocation, bool) {
	p.mu.Lock()
	p.activate(models.SourceManual)
	p.manual = text
	loc, ok := p.currentLocked()
	cb := p.onResolve
	p.mu.Unlock()

	if ok {
		metrics.LocationResolutionsTotal.WithLabelValues(string(models.SourceManual), "ok").Inc()
		if cb != nil {
			cb(loc)
		}
	}
	return loc, ok
}

// SelectGPS fetches a device fix and reverse-geocodes it. A device failure is
// returned as a ModeError and leaves the resolved address untouched. When only
// reverse geocoding fails the coordinates are kept under a coordinate label.
func (p *Picker) SelectGPS(ctx context.Context) (models.ResolvedLocation, error) {
	p.mu.Lock()
	gen := p.activate(models.SourceGPS)
	p.mu.Unlock()

	if p.locator == nil {
		return models.ResolvedLocation{}, p.fail(gen, models.SourceGPS, errors.New("no position source"))
	}
	pos, err := p.locator.CurrentPosition(ctx)
	if err != nil {
		return models.ResolvedLocation{}, p.fail(gen, models.SourceGPS, err)
	}

	accuracy := pos.Accuracy
	coords := pos.Coordinates()
	loc := models.ResolvedLocation{
		Address:     coordinateLabel(coords),
		Coordinates: &coords,
		Accuracy:    &accuracy,
		Source:      models.SourceGPS,
	}
	if res, err := p.reverseGeocode(ctx, coords); err != nil {
		p.logr.Warn("reverse geocoding failed, keeping coordinates",
			zap.Float64("lat", coords.Lat), zap.Float64("lng", coords.Lng), zap.Error(err))
	} else {
		loc.Address = res.DisplayAddress()
	}

	stored := loc
	return p.resolve(gen, loc, func() { p.gps = &stored })
}

// SelectSearch opens the address search and forward-geocodes the chosen
// address. A cancelled popup resets the mode to unresolved and returns ok=false
// with no error. A geocode failure resolves the address without coordinates.
func (p *Picker) SelectSearch(ctx context.Context) (loc models.ResolvedLocation, ok bool, err error) {
	p.mu.Lock()
	gen := p.activate(models.SourceSearch)
	p.mu.Unlock()

	if p.addresses == nil {
		return models.ResolvedLocation{}, false, p.fail(gen, models.SourceSearch, errors.New("no address search"))
	}
	data, err := p.addresses.Open(ctx)
	if errors.Is(err, address.ErrCancelled) {
		p.mu.Lock()
		if gen == p.generation {
			p.search = nil
		}
		p.mu.Unlock()
		metrics.LocationResolutionsTotal.WithLabelValues(string(models.SourceSearch), "cancelled").Inc()
		return models.ResolvedLocation{}, false, nil
	}
	if err != nil {
		return models.ResolvedLocation{}, false, p.fail(gen, models.SourceSearch, err)
	}

	loc = models.ResolvedLocation{Address: data.DisplayAddress(), Source: models.SourceSearch}
	switch {
	case data.Latitude != nil && data.Longitude != nil:
		loc.Coordinates = &models.Coordinates{Lat: *data.Latitude, Lng: *data.Longitude}
	default:
		coords, gerr := p.geocode(ctx, loc.Address)
		if gerr != nil {
			p.logr.Warn("geocoding failed, resolving without coordinates",
				zap.String("address", loc.Address), zap.Error(gerr))
		} else {
			loc.Coordinates = coords
		}
	}

	stored := loc
	loc, err = p.resolve(gen, loc, func() { p.search = &stored })
	return loc, err == nil, err
}

// resolve stores loc through set unless the mode moved on, then notifies.
func (p *Picker) resolve(gen int, loc models.ResolvedLocation, set func()) (models.ResolvedLocation, error) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		metrics.LocationResolutionsTotal.WithLabelValues(string(loc.Source), "superseded").Inc()
		return models.ResolvedLocation{}, ErrSuperseded
	}
	set()
	cb := p.onResolve
	p.mu.Unlock()

	metrics.LocationResolutionsTotal.WithLabelValues(string(loc.Source), "ok").Inc()
	if cb != nil {
		cb(loc)
	}
	return loc, nil
}

func (p *Picker) fail(gen int, mode models.LocationSource, err error) error {
	merr := &ModeError{Mode: mode, Err: err}
	p.mu.Lock()
	if gen == p.generation {
		p.lastErr = merr
	}
	p.mu.Unlock()

	metrics.LocationResolutionsTotal.WithLabelValues(string(mode), "error").Inc()
	p.logr.Info("location resolution failed", zap.String("mode", string(mode)), zap.Error(err))
	return merr
}

func (p *Picker) reverseGeocode(ctx context.Context, c models.Coordinates) (*models.GeocodingResult, error) {
	if p.geocoder == nil {
		return nil, geocode.ErrMissingAPIKey
	}
	return p.geocoder.ReverseGeocode(ctx, c.Lat, c.Lng)
}

func (p *Picker) geocode(ctx context.Context, addr string) (*models.Coordinates, error) {
	if p.geocoder == nil {
		return nil, geocode.ErrMissingAPIKey
	}
	return p.geocoder.Geocode(ctx, addr)
}

func coordinateLabel(c models.Coordinates) string {
	return fmt.Sprintf("Lat %.5f, Lng %.5f", c.Lat, c.Lng)
}
