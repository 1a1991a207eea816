package notifier

import "context"

// Notifier delivers admin/report messages. The learning pipeline never
// depends on delivery success.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
	Name() string
}

// NoopNotifier is used when Telegram is not configured.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (n *NoopNotifier) SendWithRetry(_ context.Context, _ string, _ int) error { return nil }
func (n *NoopNotifier) Name() string                                           { return "noop" }
