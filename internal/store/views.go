package store

import "civic-reports/internal/models"

// Filter returns the reports visible under f, keeping their order. The input is
// never modified; the result is always a new slice.
func Filter(reports []models.Report, f models.UrgencyFilter) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if f.Matches(r.Urgency) {
			out = append(out, r)
		}
	}
	return out
}

// MostRecentFirst returns reports in reverse insertion order.
func MostRecentFirst(reports []models.Report) []models.Report {
	out := make([]models.Report, len(reports))
	for i, r := range reports {
		out[len(reports)-1-i] = r
	}
	return out
}

// WithCoordinates keeps only reports that can be placed on a map.
func WithCoordinates(reports []models.Report) []models.Report {
	out := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if r.Coordinates != nil {
			out = append(out, r)
		}
	}
	return out
}

func Stats(reports []models.Report) models.ReportStats {
	stats := models.ReportStats{
		Total:     len(reports),
		ByUrgency: make(map[models.Urgency]int, len(models.Urgencies)),
	}
	for _, u := range models.Urgencies {
		stats.ByUrgency[u] = 0
	}
	for _, r := range reports {
		stats.ByUrgency[r.Urgency]++
		if r.Coordinates != nil {
			stats.WithCoordinates++
		}
	}
	return stats
}
