// Package geocode talks to the Kakao Local API to turn addresses into
// coordinates and back.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civic-reports/internal/metrics"
	"civic-reports/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrMissingAPIKey = errors.New("kakao api key not configured")
	ErrNotFound      = errors.New("no matching address")
)

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kakao api returned %d: %s", e.StatusCode, e.Body)
}

// Geocoder is the subset of Client the location picker needs.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
	ReverseGeocode(ctx context.Context, lat, lng float64) (*models.GeocodingResult, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logr       *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per second; 0 disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
	}
}

func WithLogger(logr *zap.Logger) Option {
	return func(c *Client) { c.logr = logr }
}

func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logr:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchAddressResponse struct {
	Documents []struct {
		AddressName string `json:"address_name"`
		X           string `json:"x"`
		Y           string `json:"y"`
	} `json:"documents"`
}

type coord2AddressResponse struct {
	Documents []struct {
		RoadAddress *struct {
			AddressName  string `json:"address_name"`
			BuildingName string `json:"building_name"`
		} `json:"road_address"`
		Address *struct {
			AddressName string `json:"address_name"`
			Region1     string `json:"region_1depth_name"`
			Region2     string `json:"region_2depth_name"`
			Region3     string `json:"region_3depth_name"`
		} `json:"address"`
	} `json:"documents"`
}

// Geocode returns the coordinates of the first match for address.
func (c *Client) Geocode(ctx context.Context, address string) (*models.Coordinates, error) {
	q := url.Values{}
	q.Set("query", address)

	var resp searchAddressResponse
	if err := c.get(ctx, "geocode", "/v2/local/search/address.json", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Documents) == 0 {
		metrics.GeocodeRequestsTotal.WithLabelValues("geocode", "not_found").Inc()
		return nil, ErrNotFound
	}

	doc := resp.Documents[0]
	lng, errX := strconv.ParseFloat(doc.X, 64)
	lat, errY := strconv.ParseFloat(doc.Y, 64)
	if errX != nil || errY != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("geocode", "error").Inc()
		return nil, fmt.Errorf("parse coordinates %q,%q: %w", doc.Y, doc.X, errors.Join(errX, errY))
	}

	metrics.GeocodeRequestsTotal.WithLabelValues("geocode", "ok").Inc()
	return &models.Coordinates{Lat: lat, Lng: lng}, nil
}

// ReverseGeocode returns the address at a WGS84 coordinate.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.GeocodingResult, error) {
	q := url.Values{}
	q.Set("x", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("input_coord", "WGS84")

	var resp coord2AddressResponse
	if err := c.get(ctx, "reverse", "/v2/local/geo/coord2address.json", q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Documents) == 0 || resp.Documents[0].Address == nil {
		metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "not_found").Inc()
		return nil, ErrNotFound
	}

	doc := resp.Documents[0]
	result := &models.GeocodingResult{
		Address:     doc.Address.AddressName,
		RoadAddress: doc.Address.AddressName,
		Region1:     doc.Address.Region1,
		Region2:     doc.Address.Region2,
		Region3:     doc.Address.Region3,
	}
	if doc.RoadAddress != nil {
		result.RoadAddress = doc.RoadAddress.AddressName
		result.BuildingName = doc.RoadAddress.BuildingName
	}

	metrics.GeocodeRequestsTotal.WithLabelValues("reverse", "ok").Inc()
	return result, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.apiKey == "" {
		metrics.GeocodeRequestsTotal.WithLabelValues(op, "no_key").Inc()
		return ErrMissingAPIKey
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	metrics.GeocodeDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logr.Warn("kakao request failed", zap.String("operation", op), zap.Error(err))
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		metrics.GeocodeRequestsTotal.WithLabelValues(op, "error").Inc()
		c.logr.Warn("kakao request rejected",
			zap.String("operation", op),
			zap.Int("status", res.StatusCode))
		return &StatusError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		metrics.GeocodeRequestsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
