// Package sweeper reclaims seats from bookings whose selection or payment
// deadline has passed.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/moviex/booking-system/internal/domain"
)

const defaultBatchSize = 100

// Sweeper periodically transitions overdue bookings to expired and releases
// their holds. Each booking is expired in its own transaction, so one
// failure never aborts the rest of the pass, and the status compare-and-swap
// in the repository makes concurrent sweeps and in-flight payments benign.
type Sweeper struct {
	bookings  domain.BookingRepository
	publisher domain.EventPublisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(bookings domain.BookingRepository, publisher domain.EventPublisher, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		bookings:  bookings,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("expiry sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped", "reason", "context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info("expiry sweeper stopped", "reason", "stop requested")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight pass to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Sweep performs one scan-and-transition pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	ids, err := s.bookings.DueForExpiry(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("failed to list overdue bookings", "error", err)
		return
	}

	if len(ids) == 0 {
		return
	}

	expiredCount := 0

	for _, id := range ids {
		expired, err := s.bookings.Expire(ctx, id)
		if err != nil {
			s.logger.Error("failed to expire booking", "booking_id", id, "error", err)
			continue
		}

		if expired == nil {
			// Paid, cancelled, or claimed by a concurrent sweep.
			continue
		}

		expiredCount++
		s.notify(ctx, expired)
	}

	if expiredCount > 0 {
		s.logger.Info("expired overdue bookings", "count", expiredCount)
	}
}

func (s *Sweeper) notify(ctx context.Context, expired *domain.ExpiredBooking) {
	for _, seatID := range expired.SeatIDs {
		err := s.publisher.PublishSeatEvent(ctx, domain.SeatEvent{
			Event:       domain.SeatEventRemoved,
			ShowtimeID:  expired.ShowtimeID,
			SeatID:      seatID,
			ActorUserID: expired.UserID,
		})
		if err != nil {
			s.logger.Error("failed to publish seat release", "booking_id", expired.BookingID, "seat_id", seatID, "error", err)
		}
	}

	err := s.publisher.PublishBookingEvent(ctx, domain.BookingEvent{
		Event:     domain.BookingEventExpired,
		BookingID: expired.BookingID,
		Status:    string(domain.BookingStatusExpired),
	})
	if err != nil {
		s.logger.Error("failed to publish booking expiry", "booking_id", expired.BookingID, "error", err)
	}
}
