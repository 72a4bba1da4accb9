// Package geolocation turns device position callbacks into coordinates or typed
// errors, for one-shot fixes and for continuous watches.
package geolocation

import (
	"context"
	"errors"

	"civic-reports/internal/models"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("location unavailable")
	ErrTimeout             = errors.New("location request timed out")
	ErrUnsupported         = errors.New("location service not supported")
)

// W3C GeolocationPositionError codes.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// FromCode maps a browser error code to its sentinel error.
func FromCode(code int) error {
	switch code {
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodePositionUnavailable:
		return ErrPositionUnavailable
	case CodeTimeout:
		return ErrTimeout
	default:
		return ErrPositionUnavailable
	}
}

// Message is the resident-facing text for a location failure.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "위치 접근 권한이 거부되었습니다. 브라우저 설정에서 위치 권한을 허용해주세요."
	case errors.Is(err, ErrPositionUnavailable):
		return "위치 정보를 사용할 수 없습니다. GPS가 켜져있는지 확인해주세요."
	case errors.Is(err, ErrTimeout):
		return "위치 정보 요청이 시간 초과되었습니다. 다시 시도해주세요."
	case errors.Is(err, ErrUnsupported):
		return "이 기기에서는 위치 서비스를 지원하지 않습니다."
	default:
		return "위치 정보를 가져올 수 없습니다."
	}
}

// Subscription is a running watch. Stop must be called exactly when the watcher
// goes away; it is safe to call more than once.
type Subscription interface {
	Stop()
}

// Device is a source of position fixes.
type Device interface {
	Position(ctx context.Context) (models.Position, error)
	Watch(ctx context.Context, onPosition func(models.Position), onError func(error)) (Subscription, error)
}
