package domain

import "context"

const (
	SeatEventAdded   = "seat_added"
	SeatEventRemoved = "seat_removed"
)

const (
	BookingEventAwaitingPayment = "awaiting_payment"
	BookingEventPaid            = "paid"
	BookingEventExpired         = "expired"
	BookingEventCancelled       = "cancelled"
)

// SeatEvent is broadcast to every viewer of a showtime when a hold is taken
// or released. Viewers re-derive seat state client-side; the seat map query
// stays the authority.
type SeatEvent struct {
	Event       string `json:"event"`
	ShowtimeID  int    `json:"showtime_id"`
	SeatID      int    `json:"seat_id"`
	ActorUserID int    `json:"actor_user_id"`
}

// BookingEvent is a status-only update for the booking's owner.
type BookingEvent struct {
	Event     string `json:"event"`
	BookingID int    `json:"booking_id"`
	Status    string `json:"status"`
}

// EventPublisher fans events out to connected subscribers. Delivery is
// best-effort and at-most-once; publish failures must never fail the
// mutation that produced the event.
type EventPublisher interface {
	PublishSeatEvent(ctx context.Context, event SeatEvent) error
	PublishBookingEvent(ctx context.Context, event BookingEvent) error
}
