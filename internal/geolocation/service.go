package geolocation

import (
	"context"
	"errors"
	"sync"
	"time"

	"civic-reports/internal/models"

	"go.uber.org/zap"
)

// Service applies the one-shot timeout and keeps track of running watches so they
// can all be stopped on shutdown.
type Service struct {
	device  Device
	timeout time.Duration
	logr    *zap.Logger

	mu      sync.Mutex
	watches map[int]watch
	nextID  int
}

type watch struct {
	sub    Subscription
	cancel context.CancelFunc
}

func NewService(device Device, timeout time.Duration, logr *zap.Logger) *Service {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &Service{
		device:  device,
		timeout: timeout,
		logr:    logr,
		watches: make(map[int]watch),
		nextID:  1,
	}
}

// CurrentPosition fetches a single fix. A deadline overrun is reported as ErrTimeout.
func (s *Service) CurrentPosition(ctx context.Context) (models.Position, error) {
	if s.device == nil {
		return models.Position{}, ErrUnsupported
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	pos, err := s.device.Position(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		s.logr.Warn("position fetch failed", zap.Error(err))
		return models.Position{}, err
	}
	return pos, nil
}

// Watch starts a continuous watch and returns its local id.
func (s *Service) Watch(onPosition func(models.Position), onError func(error)) (int, error) {
	if s.device == nil {
		return -1, ErrUnsupported
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.device.Watch(ctx, onPosition, onError)
	if err != nil {
		cancel()
		return -1, err
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watches[id] = watch{sub: sub, cancel: cancel}
	active := len(s.watches)
	s.mu.Unlock()

	s.logr.Debug("watch started", zap.Int("watch_id", id), zap.Int("active", active))
	return id, nil
}

// StopWatching ends a watch. Unknown ids are ignored.
func (s *Service) StopWatching(id int) {
	s.mu.Lock()
	w, ok := s.watches[id]
	delete(s.watches, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	w.sub.Stop()
	w.cancel()
	s.logr.Debug("watch stopped", zap.Int("watch_id", id))
}

// StopAll ends every running watch.
func (s *Service) StopAll() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.watches))
	for id := range s.watches {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.StopWatching(id)
	}
}

// ActiveWatches is the number of watches not yet stopped.
func (s *Service) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}
