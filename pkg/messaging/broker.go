package messaging

import (
	"context"
)

// Broker defines the interface for the delivery-log side channel. The
// platform never delivers real push notifications; fired notifications are
// announced on a channel for whatever wants to observe them.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
