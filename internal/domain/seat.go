package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// SeatState is the per-seat availability relative to a requesting user,
// derived from the hold ledger.
type SeatState string

const (
	SeatStateAvailable SeatState = "available"
	SeatStateSelected  SeatState = "selected" // held by the requesting user's own booking
	SeatStateHold      SeatState = "hold"     // held by another user's active booking
	SeatStateReserved  SeatState = "reserved" // sold: held by a paid booking
)

type Seat struct {
	ID         int
	RoomID     int
	Row        string
	Col        int
	Type       string
	ExtraPrice decimal.Decimal
	Active     bool
	State      SeatState
}

// ShowtimeSeatMap is a showtime's full seat layout with per-seat state.
type ShowtimeSeatMap struct {
	ShowtimeID int
	MovieTitle string
	RoomID     int
	RoomName   string
	BasePrice  decimal.Decimal
	Seats      []Seat
}

type SeatRepository interface {
	// GetSeatMapByShowtime returns every seat of the showtime's room with
	// its state as seen by userID at the repository clock's current time.
	GetSeatMapByShowtime(ctx context.Context, showtimeID, userID int) (*ShowtimeSeatMap, error)
}
