package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/ksuid"
)

// PushMessage is the JSON body queued for the push gateway.
type PushMessage struct {
	ID          string            `json:"id"`
	DeviceToken string            `json:"device_token"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
	QueuedAt    time.Time         `json:"queued_at"`
}

// ErrNoBackend is returned when publishing without a configured broker.
var ErrNoBackend = errors.New("events: no backend configured")

// PushQueue hands push messages to the gateway through a broker channel.
type PushQueue struct {
	backend Backend
	channel string
	now     func() time.Time
}

// NewPushQueue creates a push queue.
func NewPushQueue(backend Backend, channel string) *PushQueue {
	if channel == "" {
		channel = "push-notifications"
	}
	return &PushQueue{backend: backend, channel: channel, now: time.Now}
}

// SendPush queues one push message.
func (q *PushQueue) SendPush(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	if q.backend == nil {
		return ErrNoBackend
	}
	msg := PushMessage{
		ID:          ksuid.New().String(),
		DeviceToken: deviceToken,
		Title:       title,
		Body:        body,
		Data:        data,
		QueuedAt:    q.now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.backend.Publish(ctx, q.channel, raw, map[string]string{"kind": "push"})
	return err
}
