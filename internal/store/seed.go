package store

import (
	"time"

	"civic-reports/internal/models"
)

// DemoReports are the two reports the demo deployment starts with.
func DemoReports(now time.Time) []models.Report {
	return []models.Report{
		{
			ID:          "0",
			Description: "밤에 너무 어두워요.",
			Location:    "경상북도 의성군 의성읍 충효로 88",
			Urgency:     models.UrgencyUrgent,
			Coordinates: &models.Coordinates{Lat: 36.355473200305546, Lng: 128.70238171538088},
			Images:      []models.Image{},
			Status:      models.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "1",
			Description: "도로에 쓰레기가 많아요.",
			Location:    "경상북도 의성군 봉양면 봉호로 14",
			Urgency:     models.UrgencyUrgent,
			Coordinates: &models.Coordinates{Lat: 36.344546, Lng: 128.704852},
			Images:      []models.Image{},
			Status:      models.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}
