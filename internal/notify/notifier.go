// Package notify delivers best-effort operator notifications. Delivery
// failures are logged and swallowed: no caller ever sees a notification
// error, and nothing is retried.
package notify

import (
	"context"
	"log/slog"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers a plain-text notification.
	Send(ctx context.Context, text string) error
	// Name returns a human-readable identifier for the sender (e.g. "webhook").
	Name() string
}

// Notifier fans a message out to all registered senders, fire-and-forget.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over the given senders. A Notifier with no
// senders is valid and does nothing.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends text to every sender. Failures are logged per sender and never
// propagated.
func (n *Notifier) Notify(ctx context.Context, text string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, text); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.Debug("notification sent", slog.String("sender", s.Name()))
	}
}
