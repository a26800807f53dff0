// Package realtime fans seat and booking events out to connected viewers.
// Delivery is fire-and-forget: the hold ledger stays the durable source of
// truth and clients reconcile with a full seat-map refresh.
package realtime

import (
	"fmt"
	"sync"
)

// subscriberBuffer bounds the per-subscriber queue. A subscriber that falls
// this far behind starts losing events rather than backpressuring the
// publisher.
const subscriberBuffer = 16

func ShowtimeChannel(showtimeID int) string {
	return fmt.Sprintf("showtime:%d", showtimeID)
}

func BookingChannel(bookingID int) string {
	return fmt.Sprintf("booking:%d", bookingID)
}

type subscriber struct {
	ch chan []byte
}

// Hub routes payloads from publishers to the local subscribers of each
// channel. Publishing never blocks: a full subscriber buffer drops the
// event for that subscriber only.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a listener on the channel. The returned cancel
// function must be called when the listener disconnects; it closes the
// event channel.
func (h *Hub) Subscribe(channel string) (<-chan []byte, func()) {
	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.channels[channel]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.channels, channel)
				}
			}
			// Closed under the write lock so no publisher can be
			// mid-send on this channel.
			close(sub.ch)
			h.mu.Unlock()
		})
	}

	return sub.ch, cancel
}

// Publish delivers the payload to every current subscriber of the channel,
// dropping it for subscribers whose buffer is full.
func (h *Hub) Publish(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.channels[channel] {
		select {
		case sub.ch <- payload:
		default:
		}
	}
}

// SubscriberCount reports the number of listeners on a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.channels[channel])
}
