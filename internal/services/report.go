package services

import (
	"context"
	"time"

	"civic-reports/internal/metrics"
	"civic-reports/internal/models"
	"civic-reports/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportService submits drafts into the store and serves the list views.
type ReportService struct {
	store *store.ReportStore
	delay time.Duration
	now   func() time.Time
	newID func() string
	logr  *zap.Logger
}

// NewReportService creates a new report service. delay simulates the round trip
// to a backend that does not exist yet.
func NewReportService(st *store.ReportStore, delay time.Duration, logr *zap.Logger) *ReportService {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &ReportService{
		store: st,
		delay: delay,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
		logr:  logr,
	}
}

// Submit validates the draft, waits out the simulated latency and appends the
// report. On any error the store is untouched and the draft can be retried.
func (s *ReportService) Submit(ctx context.Context, d *Draft) (models.Report, error) {
	if err := d.Validate(); err != nil {
		metrics.SubmitRejectedTotal.WithLabelValues("validation").Inc()
		return models.Report{}, err
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			metrics.SubmitRejectedTotal.WithLabelValues("cancelled").Inc()
			return models.Report{}, ctx.Err()
		}
	}

	r := d.Build(s.newID(), s.now())
	s.store.AddReport(r)

	metrics.ReportsSubmittedTotal.WithLabelValues(string(r.Urgency)).Inc()
	s.logr.Info("report submitted",
		zap.String("id", r.ID),
		zap.String("urgency", string(r.Urgency)),
		zap.Bool("has_coordinates", r.Coordinates != nil),
		zap.Int("images", len(r.Images)))
	return r, nil
}

// List returns the visible reports, most recent first.
func (s *ReportService) List(f models.UrgencyFilter) []models.Report {
	return store.MostRecentFirst(store.Filter(s.store.Reports(), f))
}

func (s *ReportService) Get(id string) (models.Report, bool) {
	return s.store.Get(id)
}

func (s *ReportService) Stats() models.ReportStats {
	return store.Stats(s.store.Reports())
}

func (s *ReportService) Center() models.Coordinates {
	return s.store.Center()
}

func (s *ReportService) SetCenter(c models.Coordinates) {
	s.store.SetCenter(c)
}

func (s *ReportService) Clear() {
	s.store.Clear()
	s.logr.Info("reports cleared")
}
