package application

import "context"

// Notifier alerts the operator about pipeline faults. It never talks to the
// user of the conversation.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ string) error {
	return nil
}
