// Package notification delivers accepted alerts to external channels
// (Telegram, generic webhooks) and to the process log.
package notification

import (
	"context"
	"log"

	"alert-systemv1/internal/model"
)

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert model.Alert) error
}

// LogNotifier logs alerts to stdout (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, alert model.Alert) error {
	log.Printf("[notify] [%s] %s @ %d: %s", alert.Type, alert.Asset, alert.TS, alert.Message)
	return nil
}

// Multi fans one alert out to several backends. Delivery failures are
// logged per backend and do not stop the others.
type Multi struct {
	backends []Notifier

	// OnError, when set, is called for every failed backend delivery.
	OnError func(error)
}

// NewMulti creates a fan-out notifier.
func NewMulti(backends ...Notifier) *Multi {
	return &Multi{backends: backends}
}

func (m *Multi) Send(ctx context.Context, alert model.Alert) error {
	for _, b := range m.backends {
		if err := b.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend %T failed: %v", b, err)
			if m.OnError != nil {
				m.OnError(err)
			}
		}
	}
	return nil
}
