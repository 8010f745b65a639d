// Package broadcast defines the port for pushing live assessment events to
// subscribed clients.
package broadcast

import "context"

// Broadcaster fans an event out to every subscribed client. Delivery is best
// effort; slow or gone subscribers must not block the caller.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
