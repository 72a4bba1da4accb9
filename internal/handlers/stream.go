package handlers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"civic-reports/internal/geolocation"
	"civic-reports/internal/metrics"
	"civic-reports/internal/models"
	"civic-reports/internal/services"
	"civic-reports/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type streamMessage struct {
	Type     string              `json:"type"`
	Version  uint64              `json:"version,omitempty"`
	Reports  []models.Report     `json:"reports,omitempty"`
	Count    int                 `json:"count"`
	Center   *models.Coordinates `json:"center,omitempty"`
	Position *models.Position    `json:"position,omitempty"`
	Message  string              `json:"message,omitempty"`
}

// StreamHandler pushes store snapshots and device fixes over websockets
type StreamHandler struct {
	store     *store.ReportStore
	locations *services.LocationService
	upgrader  websocket.Upgrader
	logr      *zap.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(st *store.ReportStore, locations *services.LocationService, allowedOrigins []string, logr *zap.Logger) *StreamHandler {
	return &StreamHandler{
		store:     st,
		locations: locations,
		upgrader:  websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		logr:      logr,
	}
}

// ReportStream handles GET /reports/stream. It sends the current reports, then a
// fresh snapshot after every change. A slow client only ever gets the latest one.
func (h *StreamHandler) ReportStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logr.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan streamMessage, 1)
	var (
		mu   sync.Mutex
		last uint64
	)
	snapshot := func(snap store.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Version < last {
			return
		}
		last = snap.Version
		center := snap.Center
		offer(send, streamMessage{
			Type:    "snapshot",
			Version: snap.Version,
			Reports: snap.Reports,
			Count:   len(snap.Reports),
			Center:  &center,
		})
	}
	unsubscribe := h.store.Subscribe(snapshot)
	defer unsubscribe()
	snapshot(h.store.Snapshot())

	h.pump(conn, "reports", send)
}

// WatchDevice handles GET /location/watch/{deviceID}. It relays a field device's
// fixes until the client disconnects.
func (h *StreamHandler) WatchDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	send := make(chan streamMessage, 8)
	stop, err := h.locations.WatchDevice(deviceID,
		func(p models.Position) {
			offer(send, streamMessage{Type: "position", Position: &p})
		},
		func(err error) {
			offer(send, streamMessage{Type: "error", Message: geolocation.Message(err)})
		})
	if err != nil {
		if errors.Is(err, services.ErrNoDeviceFeed) {
			writeError(w, http.StatusServiceUnavailable, "device position feed is not configured")
			return
		}
		h.logr.Error("failed to start device watch", zap.String("device_id", deviceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start device watch")
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logr.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.logr.Info("device watch started", zap.String("device_id", deviceID))
	h.pump(conn, "device", send)
	h.logr.Info("device watch ended", zap.String("device_id", deviceID))
}

// pump writes messages from send until the client goes away.
func (h *StreamHandler) pump(conn *websocket.Conn, stream string, send <-chan streamMessage) {
	metrics.StreamClients.WithLabelValues(stream).Inc()
	defer metrics.StreamClients.WithLabelValues(stream).Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logr.Debug("websocket read error", zap.String("stream", stream), zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logr.Debug("websocket write failed", zap.String("stream", stream), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// offer queues msg, discarding the oldest queued message when full.
func offer(ch chan streamMessage, msg streamMessage) {
	for {
		select {
		case ch <- msg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
