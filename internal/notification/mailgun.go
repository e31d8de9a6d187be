package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig configures the Mailgun sender.
type MailgunConfig struct {
	Domain   string
	APIKey   string
	EU       bool
	APIBase  string
	From     string
	FromName string
	Timeout  time.Duration
}

// MailgunSender sends HTML email through the Mailgun API.
type MailgunSender struct {
	mg      *mailgun.MailgunImpl
	from    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewMailgunSender creates a Mailgun sender. APIBase overrides the region
// endpoint when set.
func NewMailgunSender(config MailgunConfig, logger *slog.Logger) *MailgunSender {
	mg := mailgun.NewMailgun(config.Domain, config.APIKey)
	switch {
	case config.APIBase != "":
		mg.SetAPIBase(config.APIBase)
	case config.EU:
		mg.SetAPIBase(mailgun.APIBaseEU)
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MailgunSender{
		mg:      mg,
		from:    formatFrom(config.FromName, config.From),
		timeout: config.Timeout,
		logger:  logger,
	}
}

// Send delivers one HTML message.
func (s *MailgunSender) Send(ctx context.Context, to, subject, html string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	message := s.mg.NewMessage(s.from, subject, "", to)
	message.SetHtml(html)
	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		return err
	}
	s.logger.Debug("mail queued", "provider", "mailgun", "id", id)
	return nil
}
