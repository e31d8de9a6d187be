// Package notify delivers side effects that follow a committed unit of
// work: one-time codes by email, persisted notifications, live updates and
// push messages. Every delivery runs in the background and failures are
// logged, never returned.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/planhub/pkg/domain"
)

// EmailSender sends a rendered HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// PushSender delivers a push message to one device.
type PushSender interface {
	SendPush(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

// LiveUpdater fans a realtime event out to a room. It reports whether the
// event was handed to a transport.
type LiveUpdater interface {
	Emit(ctx context.Context, event string, payload any, room string) bool
}

// Renderer turns codes and notifications into email content.
type Renderer interface {
	RenderCode(purpose domain.Purpose, code string, expiresIn time.Duration) (subject, html string, err error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// DeviceLookup resolves the push device of a user.
type DeviceLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// FailureObserver is told about every failed delivery, by channel.
type FailureObserver func(channel string)

// Config configures a Dispatcher. Only Store is required for Notify and
// only Email plus Renderer for DeliverCode.
type Config struct {
	Email    EmailSender
	Renderer Renderer
	Store    NotificationStore
	Devices  DeviceLookup
	Live     LiveUpdater
	Push     PushSender
	Timeout  time.Duration
	OnFail   FailureObserver
	Logger   *slog.Logger
}

// Dispatcher runs deliveries in background goroutines detached from the
// request context.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{cfg: cfg, logger: logger.With("component", "notify")}
}

// DeliverCode emails a one-time code to identifier.
func (d *Dispatcher) DeliverCode(ctx context.Context, identifier string, purpose domain.Purpose, code string, expiresIn time.Duration) {
	if d.cfg.Email == nil || d.cfg.Renderer == nil {
		d.logger.Warn("no email transport, code not delivered", "purpose", purpose)
		return
	}
	d.spawn(ctx, "email", func(ctx context.Context) error {
		subject, html, err := d.cfg.Renderer.RenderCode(purpose, code, expiresIn)
		if err != nil {
			return err
		}
		return d.cfg.Email.Send(ctx, identifier, subject, html)
	})
}

// Notify persists n, then emits it live to the recipient and pushes it to
// their device when one is registered.
func (d *Dispatcher) Notify(ctx context.Context, n *domain.Notification) {
	if d.cfg.Store == nil {
		return
	}
	d.spawn(ctx, "notification", func(ctx context.Context) error {
		if err := d.cfg.Store.Create(ctx, n); err != nil {
			return err
		}
		if d.cfg.Live != nil {
			d.cfg.Live.Emit(ctx, domain.EventNotification, n, domain.UserRoom(n.UserID))
		}
		d.push(ctx, n)
		return nil
	})
}

func (d *Dispatcher) push(ctx context.Context, n *domain.Notification) {
	if d.cfg.Push == nil || d.cfg.Devices == nil {
		return
	}
	user, err := d.cfg.Devices.GetByID(ctx, n.UserID)
	if err != nil {
		d.fail("push", err, "user_id", n.UserID)
		return
	}
	if user.DeviceToken == nil || *user.DeviceToken == "" {
		return
	}
	data := map[string]string{
		"notification_id": n.ID.String(),
		"type":            string(n.Type),
	}
	if err := d.cfg.Push.SendPush(ctx, *user.DeviceToken, n.Title, n.Body, data); err != nil {
		d.fail("push", err, "user_id", n.UserID)
	}
}

// Emit hands a live update to the transport in the background. It returns
// false when no live transport is configured.
func (d *Dispatcher) Emit(ctx context.Context, event string, payload any, room string) bool {
	if d.cfg.Live == nil {
		return false
	}
	d.spawn(ctx, "live", func(ctx context.Context) error {
		if !d.cfg.Live.Emit(ctx, event, payload, room) {
			d.logger.Debug("live update dropped", "event", event, "room", room)
		}
		return nil
	})
	return true
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) spawn(ctx context.Context, channel string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("delivery panicked", "channel", channel, "panic", r)
				d.observe(channel)
			}
		}()
		if err := fn(ctx); err != nil {
			d.fail(channel, err)
		}
	}()
}

func (d *Dispatcher) fail(channel string, err error, attrs ...any) {
	d.logger.Error("delivery failed", append([]any{"channel", channel, "error", err}, attrs...)...)
	d.observe(channel)
}

func (d *Dispatcher) observe(channel string) {
	if d.cfg.OnFail != nil {
		d.cfg.OnFail(channel)
	}
}
