package notifier

import "context"

// NoOpChannel is a no-operation Channel. It is used when a channel has no
// configuration (no webhook URL / API token), following the Null Object
// pattern so the dispatcher never needs a nil check.
type NoOpChannel struct{}

// NewNoOpChannel creates a new NoOpChannel instance.
func NewNoOpChannel() *NoOpChannel {
	return &NoOpChannel{}
}

func (n *NoOpChannel) Name() string { return "noop" }

// IsEnabled always returns false so the dispatcher's enabled-channel
// filter skips it without needing a type switch.
func (n *NoOpChannel) IsEnabled() bool { return false }

// Send does nothing and returns nil immediately.
func (n *NoOpChannel) Send(ctx context.Context, msg Message) error {
	return nil
}
