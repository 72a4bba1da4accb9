package routes

import (
	"net/http"

	"civic-reports/internal/config"
	"civic-reports/internal/handlers"
	"civic-reports/internal/logger"
	"civic-reports/internal/mapview"
	mdlwr "civic-reports/internal/middleware"
	"civic-reports/internal/services"
	"civic-reports/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the long-lived pieces the handlers share.
type Deps struct {
	Store     *store.ReportStore
	Reports   *services.ReportService
	Locations *services.LocationService
	Map       *mapview.Synchronizer
	Scene     *mapview.GeoJSONProvider
}

func NewRouter(deps Deps, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(mdlwr.NewRequestLogger(logr.Component("http")).Log)
	r.Use(middleware.Recoverer)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	reportHandler := handlers.NewReportHandler(deps.Reports, logr.Component("reports"))
	mapHandler := handlers.NewMapHandler(deps.Map, deps.Scene, deps.Reports, logr.Component("map"))
	locationHandler := handlers.NewLocationHandler(deps.Locations, logr.Component("location"))
	streamHandler := handlers.NewStreamHandler(deps.Store, deps.Locations, cfg.AllowedOrigins, logr.Component("stream"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})
	r.Handle("/metrics", promhttp.Handler())

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

	return r
}
