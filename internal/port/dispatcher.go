package port

import "context"

type Dispatcher interface {
	// Publish hands payload to the broker. A nil error only means the broker
	// accepted the message, not that the dispenser acted on it.
	Publish(ctx context.Context, topic string, payload []byte) error
}
