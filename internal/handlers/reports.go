package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"civic-reports/internal/models"
	"civic-reports/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxImageBytes = 10 << 20
	maxFieldBytes = 64 << 10
	// maxReportBody fits MaxImages full-size images plus the form fields.
	maxReportBody = models.MaxImages*maxImageBytes + 1<<20
)

// ReportHandler handles HTTP requests for reports
type ReportHandler struct {
	service *services.ReportService
	logr    *zap.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *services.ReportService, logr *zap.Logger) *ReportHandler {
	return &ReportHandler{service: svc, logr: logr}
}

type imageUpload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"` // base64 in JSON
}

type createReportReq struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Location    models.ResolvedLocation `json:"location"`
	Urgency     string                  `json:"urgency"`
	Images      []imageUpload           `json:"images"`

	dropped int // image parts skipped while reading a multipart body
}

// ListReports handles GET /reports?urgency=
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter, err := models.ParseUrgencyFilter(r.URL.Query().Get("urgency"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "urgency must be one of all, urgent, normal, low")
		return
	}

	reports := h.service.List(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    reports,
		"count":   len(reports),
		"filter":  filter,
	})
}

// GetReportStats handles GET /reports/stats
func (h *ReportHandler) GetReportStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    h.service.Stats(),
	})
}

// GetReport handles GET /reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, ok := h.service.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": report})
}

// CreateReport handles POST /reports. It accepts either a JSON body or a
// multipart form with "images" files.
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var (
		req createReportReq
		err error
	)
	r.Body = http.MaxBytesReader(w, r.Body, maxReportBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		req, err = h.parseMultipart(r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
	}
	if err != nil {
		h.logr.Warn("failed to read report request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	draft := services.NewDraft()
	draft.SetTitle(req.Title)
	if err := draft.SetDescription(req.Description); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("문제 설명은 %d자 이내로 입력해주세요.", models.MaxDescriptionLength))
		return
	}
	if strings.TrimSpace(req.Urgency) != "" {
		u, err := models.ParseUrgency(req.Urgency)
		if err != nil {
			writeError(w, http.StatusBadRequest, "urgency must be one of urgent, normal, low")
			return
		}
		_ = draft.SetUrgency(u)
	}
	loc := req.Location
	if !loc.Source.Valid() {
		loc.Source = models.SourceManual
	}
	draft.SetLocation(loc)

	images := make([]models.Image, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, services.NewImage(img.Name, img.ContentType, img.Data))
	}
	accepted := draft.AddImages(images...)
	dropped := req.dropped + len(images) - accepted
	if dropped > 0 {
		h.logr.Info("images over the limit dropped", zap.Int("dropped", dropped))
	}

	report, err := h.service.Submit(r.Context(), draft)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"success": false,
				"message": verr.Message,
				"field":   verr.Field,
			})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.logr.Info("report submit abandoned", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "제출이 취소되었습니다. 다시 시도해주세요.")
		default:
			h.logr.Error("failed to submit report", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to submit report")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"message":        "신고가 접수되었습니다.",
		"data":           report,
		"dropped_images": dropped,
	})
}

// ClearReports handles DELETE /reports
func (h *ReportHandler) ClearReports(w http.ResponseWriter, r *http.Request) {
	h.service.Clear()
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "reports cleared"})
}

// parseMultipart streams the form: title, description, urgency, address, lat,
// lng, accuracy and source fields plus "images" files. Only the first MaxImages
// files are read; later ones are skipped and counted in dropped.
func (h *ReportHandler) parseMultipart(r *http.Request) (createReportReq, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return createReportReq{}, err
	}

	var req createReportReq
	fields := make(map[string]string)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return createReportReq{}, err
		}

		switch {
		case part.FormName() == "images" && part.FileName() != "":
			if len(req.Images) >= models.MaxImages {
				req.dropped++
				break
			}
			data, err := readLimited(part, maxImageBytes)
			if err != nil {
				_ = part.Close()
				return createReportReq{}, fmt.Errorf("read image %q: %w", part.FileName(), err)
			}
			req.Images = append(req.Images, imageUpload{
				Name:        part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
		case part.FileName() == "":
			v, err := readLimited(part, maxFieldBytes)
			if err != nil {
				_ = part.Close()
				return createReportReq{}, fmt.Errorf("read field %q: %w", part.FormName(), err)
			}
			fields[part.FormName()] = string(v)
		}
		_ = part.Close()
	}
	if req.dropped > 0 {
		h.logr.Info("image parts over the limit skipped", zap.Int("skipped", req.dropped))
	}

	req.Title = fields["title"]
	req.Description = fields["description"]
	req.Urgency = fields["urgency"]
	req.Location = models.ResolvedLocation{
		Address: fields["address"],
		Source:  models.LocationSource(fields["source"]),
	}

	lat, latErr := parseOptionalFloat(fields["lat"])
	lng, lngErr := parseOptionalFloat(fields["lng"])
	if latErr != nil || lngErr != nil {
		return createReportReq{}, errors.New("invalid coordinates")
	}
	if lat != nil && lng != nil {
		req.Location.Coordinates = &models.Coordinates{Lat: *lat, Lng: *lng}
	}
	acc, err := parseOptionalFloat(fields["accuracy"])
	if err != nil {
		return createReportReq{}, fmt.Errorf("invalid accuracy: %w", err)
	}
	req.Location.Accuracy = acc
	return req, nil
}

// readLimited reads all of r, failing when it holds more than limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("larger than %d bytes", limit)
	}
	return data, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
