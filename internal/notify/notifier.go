// Package notify is the outbound notification transport. The evaluator is
// its only caller.
package notify

import "context"

// Notifier delivers one rendered message. Implementations bound each send
// with their own deadline; errors are surfaced so the evaluator can record
// delivery failure in the heartbeat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Noop discards messages. Used when no transport is configured and in
// dry-run paths that still want a Notifier value.
type Noop struct{}

func (Noop) Send(context.Context, string) error { return nil }
