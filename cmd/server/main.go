package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civic-reports/internal/config"
	"civic-reports/internal/geocode"
	"civic-reports/internal/geolocation"
	"civic-reports/internal/logger"
	"civic-reports/internal/mapview"
	"civic-reports/internal/metrics"
	"civic-reports/internal/models"
	"civic-reports/internal/routes"
	"civic-reports/internal/services"
	"civic-reports/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	metrics.Register()

	fallback := models.Coordinates{Lat: cfg.FallbackLat, Lng: cfg.FallbackLng}
	var seed []models.Report
	if cfg.SeedReports {
		seed = store.DemoReports(time.Now())
	}
	reportStore := store.NewReportStore(fallback, seed...)

	scene := mapview.NewGeoJSONProvider()
	mapSync := mapview.NewSynchronizer(scene, fallback, logr.Component("map"))
	detach := mapSync.Attach(reportStore)
	defer detach()

	if cfg.KakaoRESTAPIKey == "" {
		logr.Warn("KAKAO_REST_API_KEY not set, geocoding disabled")
	}
	geocoder := geocode.NewClient(cfg.KakaoAPIBaseURL, cfg.KakaoRESTAPIKey, cfg.GeocodeTimeout,
		geocode.WithRateLimit(cfg.GeocodeRateLimit),
		geocode.WithLogger(logr.Component("geocode")))

	var devices services.DeviceSource
	if cfg.MQTTBrokerURL != "" {
		feed, err := geolocation.ConnectMQTTFeed(cfg.MQTTBrokerURL, cfg.MQTTClientID, cfg.MQTTTopicPrefix, logr.Component("mqtt"))
		if err != nil {
			logr.Fatal("failed to connect device position feed", zap.Error(err))
		}
		defer feed.Close()
		devices = feed
	}

	reportSvc := services.NewReportService(reportStore, cfg.SubmitDelay, logr.Component("reports"))
	locationSvc := services.NewLocationService(geocoder, devices, cfg.GeolocationTimeout, logr.Component("location"))

	r := routes.NewRouter(routes.Deps{
		Store:     reportStore,
		Reports:   reportSvc,
		Locations: locationSvc,
		Map:       mapSync,
		Scene:     scene,
	}, cfg, logr)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.Int("seeded_reports", len(seed)),
			zap.Bool("device_feed", devices != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	locationSvc.StopAll()
	if err := server.Shutdown(ctx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	logr.Info("server exited gracefully")
}
