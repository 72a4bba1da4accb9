package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civic-reports/internal/mapview"
	"civic-reports/internal/models"
	"civic-reports/internal/services"
	"civic-reports/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fallback = models.Coordinates{Lat: 36.3527, Lng: 128.6972}

type testEnv struct {
	router        http.Handler
	store         *store.ReportStore
	reports       *services.ReportService
	locations     *services.LocationService
	sync          *mapview.Synchronizer
	sceneProvider *mapview.GeoJSONProvider
}

func newTestEnv(t *testing.T, devices services.DeviceSource, seed ...models.Report) *testEnv {
	t.Helper()
	logr := zap.NewNop()

	st := store.NewReportStore(fallback, seed...)
	scene := mapview.NewGeoJSONProvider()
	mapSync := mapview.NewSynchronizer(scene, fallback, logr)
	t.Cleanup(mapSync.Attach(st))

	reportSvc := services.NewReportService(st, 0, logr)
	locationSvc := services.NewLocationService(nil, devices, time.Second, logr)

	reportHandler := NewReportHandler(reportSvc, logr)
	mapHandler := NewMapHandler(mapSync, scene, reportSvc, logr)
	locationHandler := NewLocationHandler(locationSvc, logr)
	streamHandler := NewStreamHandler(st, locationSvc, []string{"*"}, logr)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", reportHandler.ListReports)
			r.Post("/", reportHandler.CreateReport)
			r.Delete("/", reportHandler.ClearReports)
			r.Get("/stats", reportHandler.GetReportStats)
			r.Get("/stream", streamHandler.ReportStream)
			r.Get("/{id}", reportHandler.GetReport)
		})
		r.Route("/map", func(r chi.Router) {
			r.Get("/", mapHandler.GetScene)
			r.Put("/filter", mapHandler.SetFilter)
			r.Put("/center", mapHandler.SetCenter)
			r.Post("/markers/{id}/click", mapHandler.ClickMarker)
		})
		r.Route("/location", func(r chi.Router) {
			r.Post("/resolve", locationHandler.Resolve)
			r.Get("/watch/{deviceID}", streamHandler.WatchDevice)
		})
	})

	return &testEnv{
		router:        r,
		store:         st,
		reports:       reportSvc,
		locations:     locationSvc,
		sync:          mapSync,
		sceneProvider: scene,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func demoReports() []models.Report {
	return store.DemoReports(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
}
