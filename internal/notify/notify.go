// Package notify delivers report and alert notifications to tenants
// over their configured channels. Channels register by name with the
// [Dispatcher]; a tenant's preferences select which ones fire.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Notification is one message to deliver to a tenant.
type Notification struct {
	TenantID string `json:"tenant_id"`
	Title    string `json:"title"`
	// Body is markdown. Channels render it as needed (the email
	// channel produces text and HTML parts, push sends it raw).
	Body string `json:"body"`
	// Email is the destination address for the email channel.
	Email string `json:"email,omitempty"`
	// ReportID links the notification to a generated report, if any.
	ReportID string `json:"report_id,omitempty"`
}

// Notifier is one delivery channel.
type Notifier interface {
	// Name returns the channel identifier (e.g., "push", "email").
	Name() string

	// Send delivers the notification.
	Send(ctx context.Context, n Notification) error
}

// Dispatcher routes notifications to named channels.
type Dispatcher struct {
	channels map[string]Notifier
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		channels: make(map[string]Notifier),
		logger:   logger.With("component", "notify"),
	}
}

// Register adds a channel.
func (d *Dispatcher) Register(n Notifier) {
	d.channels[n.Name()] = n
}

// Channels returns the registered channel names.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	return names
}

// Send delivers n on each requested channel. Unknown channels are
// logged and skipped; a notification is best-effort and one channel
// failing does not stop the others. The returned error joins all
// per-channel failures.
func (d *Dispatcher) Send(ctx context.Context, channels []string, n Notification) error {
	var errs []error
	for _, name := range channels {
		ch, ok := d.channels[name]
		if !ok {
			d.logger.Warn("notification channel not configured",
				"channel", name, "tenant", n.TenantID)
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			d.logger.Error("notification delivery failed",
				"channel", name, "tenant", n.TenantID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		d.logger.Info("notification delivered",
			"channel", name, "tenant", n.TenantID, "title", n.Title)
	}
	return errors.Join(errs...)
}
