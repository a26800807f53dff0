package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Broadcaster implements domain.EventPublisher over Redis pub/sub so every
// API instance sees events published by any of them. Events pass through
// Redis even for local subscribers; the Run loop feeds them back into the
// hub.
type Broadcaster struct {
	redis  redis.UniversalClient
	hub    *Hub
	logger *slog.Logger
}

func NewBroadcaster(redisClient redis.UniversalClient, hub *Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redis:  redisClient,
		hub:    hub,
		logger: logger,
	}
}

func (b *Broadcaster) PublishSeatEvent(ctx context.Context, event domain.SeatEvent) error {
	return b.publish(ctx, ShowtimeChannel(event.ShowtimeID), event)
}

func (b *Broadcaster) PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	return b.publish(ctx, BookingChannel(event.BookingID), event)
}

func (b *Broadcaster) publish(ctx context.Context, channel string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = b.redis.Publish(ctx, channel, payload).Err()
	if err != nil {
		b.logger.Error("failed to publish event", "channel", channel, "error", err)
		return err
	}

	return nil
}

// Run subscribes to all showtime and booking channels and dispatches
// incoming events to local hub subscribers. It blocks until the context is
// cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	pubsub := b.redis.PSubscribe(ctx, "showtime:*", "booking:*")
	defer pubsub.Close()

	ch := pubsub.Channel()

	b.logger.Info("event broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("event broadcaster stopped")
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			b.hub.Publish(msg.Channel, []byte(msg.Payload))
		}
	}
}
