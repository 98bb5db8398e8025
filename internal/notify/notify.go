// Package notify delivers poller notifications to chat webhooks and other sinks.
package notify

import (
	"context"
	"errors"
)

// Notifier delivers a titled message. Delivery is best-effort: callers log
// the returned error and move on.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
