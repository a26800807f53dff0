package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Showtime is catalog data: read-only from the booking engine's perspective.
type Showtime struct {
	ID         int
	MovieID    int
	MovieTitle string
	RoomID     int
	RoomName   string
	StartTime  time.Time
	EndTime    time.Time
	Price      decimal.Decimal
}

type ShowtimeRepository interface {
	GetByID(ctx context.Context, id int) (*Showtime, error)
}
