// Package bus decouples notification producers (the poller and digest
// scheduler) from the delivery transport (the Telegram channel). Producers
// publish; the channel consumes and sends. A slow or failing send never
// blocks a poll cycle.
package bus

import (
	"context"
	"log/slog"
)

// Notification is one outbound message for one chat.
type Notification struct {
	Feed    string // feed identifier, for logging/audit
	ChatID  int64
	Content string // HTML
}

// Bus is a buffered fan-in of notifications.
type Bus struct {
	outbound chan Notification
}

// New creates a bus with a fixed buffer. When the buffer is full the
// publisher drops the notification rather than stalling a scheduler cycle.
func New() *Bus {
	return &Bus{outbound: make(chan Notification, 100)}
}

// Publish queues a notification, dropping it if the consumer is too far
// behind.
func (b *Bus) Publish(n Notification) {
	select {
	case b.outbound <- n:
	default:
		slog.Warn("bus: outbound buffer full, dropping notification",
			"feed", n.Feed, "chat_id", n.ChatID)
	}
}

// Consume blocks until a notification is available or ctx is cancelled.
// The second result is false on cancellation.
func (b *Bus) Consume(ctx context.Context) (Notification, bool) {
	select {
	case n := <-b.outbound:
		return n, true
	case <-ctx.Done():
		return Notification{}, false
	}
}
