package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"civic-reports/internal/models"
)

var ErrDescriptionTooLong = fmt.Errorf("description exceeds %d characters", models.MaxDescriptionLength)

// ValidationError is a submission-time check that failed; Message is shown inline.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err came from Draft.Validate.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Draft is an in-progress report, the state behind the new-report form.
type Draft struct {
	Title       string
	Description string
	Location    models.ResolvedLocation
	Urgency     models.Urgency
	Images      []models.Image
}

// NewDraft starts with normal urgency and nothing else filled in.
func NewDraft() *Draft {
	return &Draft{Urgency: models.UrgencyNormal, Images: []models.Image{}}
}

func (d *Draft) SetTitle(title string) {
	d.Title = title
}

// SetDescription refuses text past the length limit and keeps the previous value.
func (d *Draft) SetDescription(text string) error {
	if utf8.RuneCountInString(text) > models.MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	d.Description = text
	return nil
}

// SetLocation takes whatever the location picker resolved.
func (d *Draft) SetLocation(loc models.ResolvedLocation) {
	d.Location = loc
}

func (d *Draft) SetUrgency(u models.Urgency) error {
	if !u.Valid() {
		return fmt.Errorf("unknown urgency %q", u)
	}
	d.Urgency = u
	return nil
}

// AddImages appends images until the draft holds MaxImages and drops the rest.
// It returns how many were accepted.
func (d *Draft) AddImages(images ...models.Image) int {
	room := models.MaxImages - len(d.Images)
	if room <= 0 {
		return 0
	}
	if len(images) > room {
		images = images[:room]
	}
	d.Images = append(d.Images, images...)
	return len(images)
}

// RemoveImage drops the image at i; the others keep their relative order.
func (d *Draft) RemoveImage(i int) error {
	if i < 0 || i >= len(d.Images) {
		return fmt.Errorf("image index %d out of range [0,%d)", i, len(d.Images))
	}
	images := make([]models.Image, 0, len(d.Images)-1)
	images = append(images, d.Images[:i]...)
	images = append(images, d.Images[i+1:]...)
	d.Images = images
	return nil
}

// Validate runs the checks a draft must pass before it may be submitted.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return &ValidationError{Field: "description", Message: "문제 설명을 입력해주세요."}
	}
	if strings.TrimSpace(d.Location.Address) == "" {
		return &ValidationError{Field: "location", Message: "위치 정보를 선택해주세요."}
	}
	return nil
}

// Build turns the draft into a report. It does not validate.
func (d *Draft) Build(id string, now time.Time) models.Report {
	images := make([]models.Image, len(d.Images))
	copy(images, d.Images)

	var coords *models.Coordinates
	if d.Location.Coordinates != nil {
		c := *d.Location.Coordinates
		coords = &c
	}

	urgency := d.Urgency
	if !urgency.Valid() {
		urgency = models.UrgencyNormal
	}

	return models.Report{
		ID:          id,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Location:    d.Location.Address,
		Coordinates: coords,
		Urgency:     urgency,
		Images:      images,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
