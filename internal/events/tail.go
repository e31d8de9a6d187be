package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Tail logs every message on channel until ctx is done. Messages that are
// not valid JSON are still acked.
func Tail(ctx context.Context, backend Backend, channel string, logger *slog.Logger) error {
	if backend == nil {
		return ErrNoBackend
	}
	return backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		var body map[string]any
		if err := json.Unmarshal(msg.Data, &body); err != nil {
			logger.Warn("undecodable message", "channel", channel, "id", msg.ID, "error", err)
			return nil
		}
		logger.Info("message", "channel", channel, "id", msg.ID, "attributes", msg.Attributes, "body", body)
		return nil
	})
}
