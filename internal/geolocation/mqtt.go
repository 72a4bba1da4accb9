package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"civic-reports/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// fixMessage is what field devices publish on <prefix>/<deviceID>/position.
// Timestamp is unix milliseconds; a non-zero Error carries a W3C error code.
type fixMessage struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy"`
	Timestamp int64   `json:"timestamp"`
	Error     int     `json:"error,omitempty"`
}

type fixListener struct {
	onPosition func(models.Position)
	onError    func(error)
}

// MQTTFeed fans device fixes received over MQTT out to per-device watchers.
type MQTTFeed struct {
	client mqtt.Client
	prefix string
	logr   *zap.Logger

	mu        sync.Mutex
	listeners map[string]map[int]fixListener
	next      int
}

// ConnectMQTTFeed dials the broker and subscribes to every device's position topic.
func ConnectMQTTFeed(brokerURL, clientID, prefix string, logr *zap.Logger) (*MQTTFeed, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker: %w", token.Error())
	}

	feed := NewMQTTFeed(client, prefix, logr)
	if err := feed.Start(); err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return feed, nil
}

func NewMQTTFeed(client mqtt.Client, prefix string, logr *zap.Logger) *MQTTFeed {
	if logr == nil {
		logr = zap.NewNop()
	}
	return &MQTTFeed{
		client:    client,
		prefix:    strings.TrimSuffix(prefix, "/"),
		logr:      logr,
		listeners: make(map[string]map[int]fixListener),
	}
}

func (f *MQTTFeed) topicFilter() string {
	return f.prefix + "/+/position"
}

// Start subscribes to the position topics.
func (f *MQTTFeed) Start() error {
	token := f.client.Subscribe(f.topicFilter(), 1, func(_ mqtt.Client, m mqtt.Message) {
		f.dispatch(m.Topic(), m.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", f.topicFilter(), token.Error())
	}
	f.logr.Info("device position feed subscribed", zap.String("topic", f.topicFilter()))
	return nil
}

// Close unsubscribes and disconnects.
func (f *MQTTFeed) Close() {
	if f.client == nil {
		return
	}
	if token := f.client.Unsubscribe(f.topicFilter()); token.Wait() && token.Error() != nil {
		f.logr.Warn("mqtt unsubscribe failed", zap.Error(token.Error()))
	}
	f.client.Disconnect(250)
}

// Device returns the position source for one device.
func (f *MQTTFeed) Device(deviceID string) Device {
	return &mqttDevice{feed: f, id: deviceID}
}

func (f *MQTTFeed) listen(deviceID string, l fixListener) (remove func()) {
	f.mu.Lock()
	f.next++
	id := f.next
	if f.listeners[deviceID] == nil {
		f.listeners[deviceID] = make(map[int]fixListener)
	}
	f.listeners[deviceID][id] = l
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners[deviceID], id)
			if len(f.listeners[deviceID]) == 0 {
				delete(f.listeners, deviceID)
			}
			f.mu.Unlock()
		})
	}
}

func (f *MQTTFeed) dispatch(topic string, payload []byte) {
	deviceID, ok := f.deviceFromTopic(topic)
	if !ok {
		f.logr.Debug("ignoring message on unexpected topic", zap.String("topic", topic))
		return
	}

	var msg fixMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.logr.Warn("invalid position payload", zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	f.mu.Lock()
	targets := make([]fixListener, 0, len(f.listeners[deviceID]))
	for _, l := range f.listeners[deviceID] {
		targets = append(targets, l)
	}
	f.mu.Unlock()

	if msg.Error != 0 {
		err := FromCode(msg.Error)
		for _, l := range targets {
			l.onError(err)
		}
		return
	}

	pos := models.Position{
		Lat:       msg.Lat,
		Lng:       msg.Lng,
		Accuracy:  msg.Accuracy,
		Timestamp: time.UnixMilli(msg.Timestamp),
	}
	if msg.Timestamp == 0 {
		pos.Timestamp = time.Now()
	}
	for _, l := range targets {
		l.onPosition(pos)
	}
}

func (f *MQTTFeed) deviceFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, f.prefix+"/")
	if !ok {
		return "", false
	}
	deviceID, ok := strings.CutSuffix(rest, "/position")
	if !ok || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", false
	}
	return deviceID, true
}

type mqttDevice struct {
	feed *MQTTFeed
	id   string
}

// Position waits for the device's next fix.
func (d *mqttDevice) Position(ctx context.Context) (models.Position, error) {
	posCh := make(chan models.Position, 1)
	errCh := make(chan error, 1)
	remove := d.feed.listen(d.id, fixListener{
		onPosition: func(p models.Position) {
			select {
			case posCh <- p:
			default:
			}
		},
		onError: func(err error) {
			select {
			case errCh <- err:
			default:
			}
		},
	})
	defer remove()

	select {
	case p := <-posCh:
		return p, nil
	case err := <-errCh:
		return models.Position{}, err
	case <-ctx.Done():
		return models.Position{}, ctx.Err()
	}
}

type subscriptionFunc func()

func (f subscriptionFunc) Stop() { f() }

// Watch delivers every fix until the subscription is stopped or ctx ends.
func (d *mqttDevice) Watch(ctx context.Context, onPosition func(models.Position), onError func(error)) (Subscription, error) {
	remove := d.feed.listen(d.id, fixListener{onPosition: onPosition, onError: onError})
	go func() {
		<-ctx.Done()
		remove()
	}()
	return subscriptionFunc(remove), nil
}
