package handlers

import (
	"errors"
	"net/http"

	"civic-reports/internal/geolocation"
	"civic-reports/internal/location"
	"civic-reports/internal/models"
	"civic-reports/internal/services"

	"go.uber.org/zap"
)

// LocationHandler handles HTTP requests for location resolution
type LocationHandler struct {
	service *services.LocationService
	logr    *zap.Logger
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(svc *services.LocationService, logr *zap.Logger) *LocationHandler {
	return &LocationHandler{service: svc, logr: logr}
}

// Resolve handles POST /location/resolve
func (h *LocationHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req services.ResolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Mode.Valid() {
		writeError(w, http.StatusBadRequest, "mode must be one of manual, gps, search")
		return
	}

	res, err := h.service.Resolve(r.Context(), req)
	if err != nil {
		var merr *location.ModeError
		switch {
		case errors.Is(err, services.ErrNoDeviceFeed):
			writeError(w, http.StatusServiceUnavailable, "device position feed is not configured")
		case errors.As(err, &merr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"success": false,
				"mode":    merr.Mode,
				"message": modeErrorMessage(merr),
			})
		default:
			h.logr.Error("location resolve failed", zap.String("mode", string(req.Mode)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "위치 정보를 가져올 수 없습니다.")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

func modeErrorMessage(err *location.ModeError) string {
	if err.Mode == models.SourceGPS {
		return geolocation.Message(err.Err)
	}
	return "주소 검색 중 오류가 발생했습니다. 다시 시도해주세요."
}
