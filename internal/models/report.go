package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MaxDescriptionLength bounds a report description, counted in characters.
	MaxDescriptionLength = 500
	// MaxImages bounds the number of photos attached to a single report.
	MaxImages = 5
)

// Urgency is the fixed three-level severity of a report.
type Urgency string

const (
	UrgencyUrgent Urgency = "urgent"
	UrgencyNormal Urgency = "normal"
	UrgencyLow    Urgency = "low"
)

// Urgencies lists every level in display order.
var Urgencies = []Urgency{UrgencyUrgent, UrgencyNormal, UrgencyLow}

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyUrgent, UrgencyNormal, UrgencyLow:
		return true
	}
	return false
}

// Label returns the resident-facing label.
func (u Urgency) Label() string {
	switch u {
	case UrgencyUrgent:
		return "긴급"
	case UrgencyLow:
		return "낮음"
	default:
		return "보통"
	}
}

// ParseUrgency accepts any case and surrounding whitespace.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(strings.ToLower(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("unknown urgency %q", s)
	}
	return u, nil
}

// UrgencyFilter selects either every report or a single urgency level.
type UrgencyFilter string

const FilterAll UrgencyFilter = "all"

// ParseUrgencyFilter maps "" and "all" to FilterAll.
func ParseUrgencyFilter(s string) (UrgencyFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == string(FilterAll) {
		return FilterAll, nil
	}
	u, err := ParseUrgency(s)
	if err != nil {
		return "", err
	}
	return UrgencyFilter(u), nil
}

// Matches reports whether a report of urgency u is visible under the filter.
func (f UrgencyFilter) Matches(u Urgency) bool {
	return f == FilterAll || f == "" || Urgency(f) == u
}

// Status is carried for the production workflow; the submit flow only ever sets
// StatusPending.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusRejected   Status = "REJECTED"
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Image is an attached photo. Its bytes live only in process memory.
type Image struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Orientation int    `json:"orientation"` // EXIF orientation, 1 when unknown
	Data        []byte `json:"-"`
}

// Report is a submitted complaint.
type Report struct {
	ID          string       `json:"id"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Urgency     Urgency      `json:"urgency"`
	Images      []Image      `json:"images"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	UserID      string       `json:"user_id,omitempty"`
	Category    string       `json:"category,omitempty"`
}

// ReportStats counts reports for the list page chips.
type ReportStats struct {
	Total           int             `json:"total"`
	ByUrgency       map[Urgency]int `json:"by_urgency"`
	WithCoordinates int             `json:"with_coordinates"`
}

// Clone copies r so that changing the copy's coordinates or image list leaves r
// alone. Image bytes are shared and treated as read-only.
func (r Report) Clone() Report {
	if r.Coordinates != nil {
		c := *r.Coordinates
		r.Coordinates = &c
	}
	if r.Images != nil {
		images := make([]Image, len(r.Images))
		copy(images, r.Images)
		r.Images = images
	}
	return r
}
