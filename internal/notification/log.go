package notification

import (
	"context"
	"log/slog"
)

// LogSender writes emails to the log instead of sending them. Used in
// development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, html string) error {
	s.logger.InfoContext(ctx, "email", "to", to, "subject", subject, "html", html)
	return nil
}
