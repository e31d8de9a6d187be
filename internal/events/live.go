package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/ksuid"
)

// Envelope is the JSON body of every live update.
type Envelope struct {
	ID      string          `json:"id"`
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
}

// Emitter publishes live updates to a broker channel, from which the
// realtime gateway fans them out to connected clients.
type Emitter struct {
	backend Backend
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// NewEmitter creates an emitter. A nil backend yields an emitter whose Emit
// always reports false.
func NewEmitter(backend Backend, channel string, logger *slog.Logger) *Emitter {
	if channel == "" {
		channel = "live-updates"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{backend: backend, channel: channel, logger: logger, now: time.Now}
}

// Emit publishes event to room. It returns false when there is no backend
// or the publish failed.
func (e *Emitter) Emit(ctx context.Context, event string, payload any, room string) bool {
	if e == nil || e.backend == nil {
		return false
	}

	env := Envelope{
		ID:     ksuid.New().String(),
		Event:  event,
		Room:   room,
		SentAt: e.now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			e.logger.Error("encode live update", "event", event, "error", err)
			return false
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		e.logger.Error("encode live update", "event", event, "error", err)
		return false
	}

	attrs := map[string]string{"event": event}
	if room != "" {
		attrs["room"] = room
	}
	if _, err := e.backend.Publish(ctx, e.channel, data, attrs); err != nil {
		e.logger.Warn("publish live update", "event", event, "room", room, "error", err)
		return false
	}
	return true
}
