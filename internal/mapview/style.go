package mapview

import (
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"civic-reports/internal/models"
)

const (
	ColorUrgent = "#FF4500"
	ColorNormal = "#FFD700"
	ColorLow    = "#3CB371"
)

// MarkerColor maps urgency to the marker fill.
func MarkerColor(u models.Urgency) string {
	switch u {
	case models.UrgencyUrgent:
		return ColorUrgent
	case models.UrgencyLow:
		return ColorLow
	default:
		return ColorNormal
	}
}

// MarkerIcon renders a filled circle of the given color as an SVG data URI.
func MarkerIcon(color string) string {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="35" height="35">`+
		`<circle cx="12" cy="12" r="10" fill="%s" stroke="black" stroke-width="1" /></svg>`, color)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// PopupContent is the info popup body for a report. All report text is escaped.
func PopupContent(r models.Report) string {
	var b strings.Builder
	b.WriteString(`<div style="padding:10px; min-width:250px;">`)
	if r.Title != "" {
		fmt.Fprintf(&b, `<h4 style="margin:0 0 5px 0;">%s</h4>`, html.EscapeString(r.Title))
	}
	fmt.Fprintf(&b, `<p style="margin:0 0 5px 0;">%s</p>`, html.EscapeString(r.Description))
	fmt.Fprintf(&b, `<p style="margin:0 0 5px 0; color:#555;">%s</p>`, html.EscapeString(r.Location))
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, `<p style="margin:0; color:#888; font-size:12px;">%s</p>`, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	b.WriteString(`</div>`)
	return b.String()
}
