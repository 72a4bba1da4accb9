package services

import (
	"bytes"
	"net/http"

	"civic-reports/internal/models"

	"github.com/rwcarlsen/goexif/exif"
)

// NewImage wraps uploaded bytes, sniffing the content type when the client did
// not send one and reading the EXIF orientation so clients can rotate previews.
func NewImage(name, contentType string, data []byte) models.Image {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return models.Image{
		Name:        name,
		ContentType: contentType,
		Size:        len(data),
		Orientation: imageOrientation(data),
		Data:        data,
	}
}

// imageOrientation returns the EXIF orientation tag, 1 when absent or unreadable.
func imageOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}
