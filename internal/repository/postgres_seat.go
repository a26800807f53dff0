package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moviex/booking-system/internal/domain"
)

type PostgresSeatRepository struct {
	db    *pgxpool.Pool
	clock domain.Clock
}

func NewPostgresSeatRepository(db *pgxpool.Pool, clock domain.Clock) *PostgresSeatRepository {
	return &PostgresSeatRepository{
		db:    db,
		clock: clock,
	}
}

// GetSeatMapByShowtime derives the per-seat state in a single query: a seat
// is reserved when a paid booking holds it, selected when the requesting
// user's active booking holds it, hold when another user's active booking
// holds it, and available otherwise. Holds on expired or cancelled bookings
// never block a seat, whether or not the sweeper has deleted them yet.
func (p *PostgresSeatRepository) GetSeatMapByShowtime(
	ctx context.Context,
	showtimeID, userID int) (*domain.ShowtimeSeatMap, error) {

	now := p.clock.Now()

	query := `
		SELECT sh.id, m.title, r.id, r.name, sh.price,
			s.id, s.seat_row, s.seat_col, COALESCE(st.name, ''),
			COALESCE(st.extra_price, 0), s.is_active,
			CASE
				WHEN h.booking_id IS NULL THEN 'available'
				WHEN h.status = 'paid' THEN 'reserved'
				WHEN h.user_id = $2 THEN 'selected'
				ELSE 'hold'
			END
		FROM showtimes sh
		JOIN movies m ON m.id = sh.movie_id
		JOIN rooms r ON r.id = sh.room_id
		JOIN seats s ON s.room_id = r.id
		LEFT JOIN seat_types st ON st.id = s.seat_type_id
		LEFT JOIN LATERAL (
			SELECT bs.booking_id, b.user_id, b.status
			FROM booking_seats bs
			JOIN bookings b ON b.id = bs.booking_id
			WHERE bs.showtime_id = sh.id AND bs.seat_id = s.id
				AND (b.status = 'paid'
					OR (b.status = 'selecting_seats' AND b.select_seat_expires_at > $3)
					OR (b.status = 'awaiting_payment' AND b.pay_expires_at > $3))
			LIMIT 1
		) h ON true
		WHERE sh.id = $1
		ORDER BY s.seat_row, s.seat_col
	`

	rows, err := p.db.Query(ctx, query, showtimeID, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seatMap domain.ShowtimeSeatMap
	seatMap.Seats = make([]domain.Seat, 0)

	for rows.Next() {
		var seat domain.Seat

		err = rows.Scan(
			&seatMap.ShowtimeID,
			&seatMap.MovieTitle,
			&seatMap.RoomID,
			&seatMap.RoomName,
			&seatMap.BasePrice,
			&seat.ID,
			&seat.Row,
			&seat.Col,
			&seat.Type,
			&seat.ExtraPrice,
			&seat.Active,
			&seat.State,
		)
		if err != nil {
			return nil, err
		}

		seat.RoomID = seatMap.RoomID
		seatMap.Seats = append(seatMap.Seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(seatMap.Seats) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return &seatMap, nil
}

type PostgresShowtimeRepository struct {
	db *pgxpool.Pool
}

func NewPostgresShowtimeRepository(db *pgxpool.Pool) *PostgresShowtimeRepository {
	return &PostgresShowtimeRepository{db: db}
}

func (p *PostgresShowtimeRepository) GetByID(ctx context.Context, id int) (*domain.Showtime, error) {
	query := `
		SELECT sh.id, sh.movie_id, m.title, sh.room_id, r.name,
			sh.start_time, sh.end_time, sh.price
		FROM showtimes sh
		JOIN movies m ON m.id = sh.movie_id
		JOIN rooms r ON r.id = sh.room_id
		WHERE sh.id = $1
	`

	var showtime domain.Showtime
	err := p.db.QueryRow(ctx, query, id).Scan(
		&showtime.ID,
		&showtime.MovieID,
		&showtime.MovieTitle,
		&showtime.RoomID,
		&showtime.RoomName,
		&showtime.StartTime,
		&showtime.EndTime,
		&showtime.Price,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &showtime, nil
}
