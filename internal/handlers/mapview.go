package handlers

import (
	"net/http"

	"civic-reports/internal/mapview"
	"civic-reports/internal/models"
	"civic-reports/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MapHandler handles HTTP requests for the shared map scene
type MapHandler struct {
	sync    *mapview.Synchronizer
	scene   *mapview.GeoJSONProvider
	reports *services.ReportService
	logr    *zap.Logger
}

// NewMapHandler creates a new map handler
func NewMapHandler(sync *mapview.Synchronizer, scene *mapview.GeoJSONProvider, reports *services.ReportService, logr *zap.Logger) *MapHandler {
	return &MapHandler{sync: sync, scene: scene, reports: reports, logr: logr}
}

type mapState struct {
	mapview.Scene
	SelectedID   string               `json:"selected_id,omitempty"`
	Filter       models.UrgencyFilter `json:"filter"`
	VisibleCount int                  `json:"visible_count"`
	Center       models.Coordinates   `json:"center"`
}

func (h *MapHandler) state() mapState {
	return mapState{
		Scene:        h.scene.Scene(),
		SelectedID:   h.sync.Selected(),
		Filter:       h.sync.Filter(),
		VisibleCount: len(h.sync.Visible()),
		Center:       h.reports.Center(),
	}
}

// GetScene handles GET /map
func (h *MapHandler) GetScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.state()})
}

// ClickMarker handles POST /map/markers/{id}/click. It toggles the report's popup.
func (h *MapHandler) ClickMarker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.scene.Click(id) {
		writeError(w, http.StatusNotFound, "no marker for report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.state()})
}

type filterReq struct {
	Urgency string `json:"urgency"`
}

// SetFilter handles PUT /map/filter
func (h *MapHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	filter, err := models.ParseUrgencyFilter(req.Urgency)
	if err != nil {
		writeError(w, http.StatusBadRequest, "urgency must be one of all, urgent, normal, low")
		return
	}

	h.sync.SetFilter(filter)
	h.logr.Debug("map filter changed", zap.String("filter", string(filter)))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.state()})
}

// SetCenter handles PUT /map/center
func (h *MapHandler) SetCenter(w http.ResponseWriter, r *http.Request) {
	var c models.Coordinates
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	h.reports.SetCenter(c)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.reports.Center()})
}
