package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusSelectingSeats  BookingStatus = "selecting_seats"
	BookingStatusAwaitingPayment BookingStatus = "awaiting_payment"
	BookingStatusPaid            BookingStatus = "paid"
	BookingStatusExpired         BookingStatus = "expired"
	BookingStatusCancelled       BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusPaid || s == BookingStatusExpired || s == BookingStatusCancelled
}

type Booking struct {
	ID                  int
	UserID              int
	ShowtimeID          int
	Status              BookingStatus
	TotalAmount         decimal.Decimal
	SelectSeatExpiresAt time.Time
	PayExpiresAt        *time.Time
	PaymentRef          *string
	Seats               []BookingSeat
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BookingSeat is a hold: one booking's claim on one seat of its showtime,
// priced at the moment the seat was added.
type BookingSeat struct {
	BookingID  int
	ShowtimeID int
	SeatID     int
	SeatRow    string
	SeatCol    int
	SeatType   string
	Price      decimal.Decimal
	CreatedAt  time.Time
}

// Active reports whether the booking still counts as a holder of its seats
// at the given instant: not terminal (paid always counts) and the deadline
// of its current phase has not passed.
func (b *Booking) Active(now time.Time) bool {
	switch b.Status {
	case BookingStatusPaid:
		return true
	case BookingStatusSelectingSeats:
		return b.SelectSeatExpiresAt.After(now)
	case BookingStatusAwaitingPayment:
		return b.PayExpiresAt != nil && b.PayExpiresAt.After(now)
	}

	return false
}

// Deadline returns the deadline governing the booking's current phase.
// Terminal bookings have none.
func (b *Booking) Deadline() (time.Time, bool) {
	switch b.Status {
	case BookingStatusSelectingSeats:
		return b.SelectSeatExpiresAt, true
	case BookingStatusAwaitingPayment:
		if b.PayExpiresAt != nil {
			return *b.PayExpiresAt, true
		}
	}

	return time.Time{}, false
}

// ExpiredBooking is the outcome of one sweeper transition: the booking that
// went terminal and the seats it was holding.
type ExpiredBooking struct {
	BookingID  int
	UserID     int
	ShowtimeID int
	SeatIDs    []int
}

type BookingRepository interface {
	// GetOrCreate returns the user's active booking for the showtime,
	// creating one in selecting_seats when none exists. Concurrent duplicate
	// calls for the same (user, showtime) must converge on a single booking.
	// When a stale predecessor booking is retired on the way, the seat IDs
	// its holds were released from are returned so callers can fan them out.
	GetOrCreate(ctx context.Context, userID, showtimeID int, selectTimeout time.Duration) (*Booking, []int, error)

	GetByID(ctx context.Context, id int) (*Booking, error)

	// AddSeat atomically acquires the seat for the booking. Exactly one of
	// N racing bookings may win a given (showtime, seat); the rest get
	// ErrSeatAlreadyReserved. The bool reports whether this call created the
	// hold; re-adding a seat the booking already holds is a no-op.
	AddSeat(ctx context.Context, bookingID, seatID int) (*BookingSeat, bool, error)

	// RemoveSeat releases the hold and recomputes the total. Removing a
	// seat the booking does not hold is a no-op.
	RemoveSeat(ctx context.Context, bookingID, seatID int) (removed bool, err error)

	// TransitionToPayment moves selecting_seats -> awaiting_payment and arms
	// the payment deadline.
	TransitionToPayment(ctx context.Context, bookingID int, payTimeout time.Duration) (*Booking, error)

	// SetPaymentRef records the gateway transaction reference while the
	// booking awaits payment.
	SetPaymentRef(ctx context.Context, bookingID int, ref string) error

	// FinalizeAsPaid marks the booking identified by the transaction
	// reference as paid. Replays of an already-finalized reference succeed
	// without further effect; the bool reports whether this call performed
	// the transition.
	FinalizeAsPaid(ctx context.Context, ref string) (*Booking, bool, error)

	// Cancel moves any non-terminal booking to cancelled and releases its
	// holds, returning the freed seat IDs.
	Cancel(ctx context.Context, bookingID int) ([]int, error)

	// DueForExpiry lists bookings whose current deadline has passed.
	DueForExpiry(ctx context.Context, limit int) ([]int, error)

	// Expire transitions one overdue booking to expired and releases its
	// holds. A booking that was concurrently paid, cancelled, or already
	// expired is skipped (nil result, nil error).
	Expire(ctx context.Context, bookingID int) (*ExpiredBooking, error)
}
