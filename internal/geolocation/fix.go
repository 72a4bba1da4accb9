package geolocation

import (
	"context"
	"time"

	"civic-reports/internal/models"
)

// FixDevice answers with a fix the client already obtained from its own
// geolocation API, or with the error code it got instead.
type FixDevice struct {
	Fix       *models.Position
	ErrorCode int
}

func (d FixDevice) Position(ctx context.Context) (models.Position, error) {
	if err := ctx.Err(); err != nil {
		return models.Position{}, err
	}
	if d.Fix == nil {
		if d.ErrorCode == 0 {
			return models.Position{}, ErrUnsupported
		}
		return models.Position{}, FromCode(d.ErrorCode)
	}
	pos := *d.Fix
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}
	return pos, nil
}

// Watch is not available for a single reported fix.
func (d FixDevice) Watch(context.Context, func(models.Position), func(error)) (Subscription, error) {
	return nil, ErrUnsupported
}
