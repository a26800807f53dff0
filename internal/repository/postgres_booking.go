package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/moviex/booking-system/internal/domain"
	"github.com/shopspring/decimal"
)

type PostgresBookingRepository struct {
	db    *pgxpool.Pool
	clock domain.Clock
}

func NewPostgresBookingRepository(db *pgxpool.Pool, clock domain.Clock) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db:    db,
		clock: clock,
	}
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

func (p *PostgresBookingRepository) GetOrCreate(
	ctx context.Context,
	userID, showtimeID int,
	selectTimeout time.Duration) (*domain.Booking, []int, error) {

	now := p.clock.Now()
	var booking *domain.Booking
	var freedSeats []int

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		// A stale booking not yet picked up by the sweeper would trip the
		// active-booking unique index, so retire it here first. The sweeper
		// never sees bookings retired this way, so the freed seats are handed
		// back for the caller to announce.
		freed, err := expireStaleBookings(ctx, tx, userID, showtimeID, now)
		if err != nil {
			return err
		}
		freedSeats = freed

		existing, err := selectActiveBooking(ctx, tx, userID, showtimeID, now)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}

		if existing != nil {
			booking = existing
			return nil
		}

		query := `
			INSERT INTO bookings (user_id, showtime_id, status, total_amount, select_seat_expires_at)
			VALUES ($1, $2, 'selecting_seats', 0, $3)
			RETURNING id, user_id, showtime_id, status, total_amount,
				select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
		`

		created, err := scanBooking(tx.QueryRow(ctx, query, userID, showtimeID, now.Add(selectTimeout)))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
				// Lost the race against a concurrent duplicate create;
				// converge on the row that won.
				return domain.ErrEditConflict
			}

			return err
		}

		booking = created
		return nil
	})

	if errors.Is(err, domain.ErrEditConflict) {
		// The transaction that retired the stale booking rolled back; the
		// concurrent winner committed the retirement and owns the fan-out.
		converged, err := p.getActive(ctx, userID, showtimeID, now)
		return converged, nil, err
	}

	if err != nil {
		return nil, nil, err
	}

	return booking, freedSeats, nil
}

func (p *PostgresBookingRepository) getActive(
	ctx context.Context,
	userID, showtimeID int,
	now time.Time) (*domain.Booking, error) {

	var booking *domain.Booking

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		found, err := selectActiveBooking(ctx, tx, userID, showtimeID, now)
		if err != nil {
			return err
		}

		booking = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

func expireStaleBookings(ctx context.Context, tx pgx.Tx, userID, showtimeID int, now time.Time) ([]int, error) {
	query := `
		UPDATE bookings SET status = 'expired', updated_at = $3
		WHERE user_id = $1 AND showtime_id = $2
			AND ((status = 'selecting_seats' AND select_seat_expires_at <= $3)
				OR (status = 'awaiting_payment' AND pay_expires_at <= $3))
		RETURNING id
	`

	rows, err := tx.Query(ctx, query, userID, showtimeID, now)
	if err != nil {
		return nil, err
	}

	expiredIDs, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}

	var freedSeats []int

	for _, id := range expiredIDs {
		rows, err := tx.Query(ctx,
			`DELETE FROM booking_seats WHERE booking_id = $1 RETURNING seat_id`, id)
		if err != nil {
			return nil, err
		}

		seatIDs, err := pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return nil, err
		}

		freedSeats = append(freedSeats, seatIDs...)
	}

	return freedSeats, nil
}

func selectActiveBooking(ctx context.Context, tx pgx.Tx, userID, showtimeID int, now time.Time) (*domain.Booking, error) {
	query := `
		SELECT id, user_id, showtime_id, status, total_amount,
			select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
		FROM bookings
		WHERE user_id = $1 AND showtime_id = $2
			AND ((status = 'selecting_seats' AND select_seat_expires_at > $3)
				OR (status = 'awaiting_payment' AND pay_expires_at > $3))
	`

	booking, err := scanBooking(tx.QueryRow(ctx, query, userID, showtimeID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	seats, err := selectBookingSeats(ctx, tx, booking.ID)
	if err != nil {
		return nil, err
	}

	booking.Seats = seats

	return booking, nil
}

func (p *PostgresBookingRepository) GetByID(ctx context.Context, id int) (*domain.Booking, error) {
	query := `
		SELECT id, user_id, showtime_id, status, total_amount,
			select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`

	booking, err := scanBooking(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	seatsQuery := `
		SELECT bs.booking_id, bs.showtime_id, bs.seat_id,
			s.seat_row, s.seat_col, COALESCE(st.name, ''), bs.price, bs.created_at
		FROM booking_seats bs
		JOIN seats s ON s.id = bs.seat_id
		LEFT JOIN seat_types st ON st.id = s.seat_type_id
		WHERE bs.booking_id = $1
		ORDER BY s.seat_row, s.seat_col
	`

	rows, err := p.db.Query(ctx, seatsQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.BookingSeat, 0)

	for rows.Next() {
		var seat domain.BookingSeat

		err = rows.Scan(
			&seat.BookingID,
			&seat.ShowtimeID,
			&seat.SeatID,
			&seat.SeatRow,
			&seat.SeatCol,
			&seat.SeatType,
			&seat.Price,
			&seat.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	booking.Seats = seats

	return booking, nil
}

// AddSeat acquires the seat under a per-(showtime, seat) advisory lock so
// that concurrent acquisition attempts for the same seat serialize at the
// point of commit. Exactly one racing booking can pass the active-hold
// existence check; the rest see ErrSeatAlreadyReserved.
func (p *PostgresBookingRepository) AddSeat(ctx context.Context, bookingID, seatID int) (*domain.BookingSeat, bool, error) {
	now := p.clock.Now()
	var hold *domain.BookingSeat
	var created bool

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		booking, err := lockBookingRow(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if booking.Status != domain.BookingStatusSelectingSeats {
			return domain.ErrBookingNotActive
		}

		if !booking.SelectSeatExpiresAt.After(now) {
			return domain.ErrBookingExpired
		}

		seat, err := selectSeatForShowtime(ctx, tx, booking.ShowtimeID, seatID)
		if err != nil {
			return err
		}

		if !seat.active {
			return domain.ErrSeatNotBookable
		}

		existing, err := selectHold(ctx, tx, bookingID, seatID)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return err
		}

		if existing != nil {
			hold = existing
			return nil
		}

		_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1::int, $2::int)`, booking.ShowtimeID, seatID)
		if err != nil {
			return err
		}

		conflictQuery := `
			SELECT EXISTS (
				SELECT 1
				FROM booking_seats bs
				JOIN bookings b ON b.id = bs.booking_id
				WHERE bs.showtime_id = $1 AND bs.seat_id = $2 AND bs.booking_id <> $3
					AND (b.status = 'paid'
						OR (b.status = 'selecting_seats' AND b.select_seat_expires_at > $4)
						OR (b.status = 'awaiting_payment' AND b.pay_expires_at > $4))
			)
		`

		var taken bool
		err = tx.QueryRow(ctx, conflictQuery, booking.ShowtimeID, seatID, bookingID, now).Scan(&taken)
		if err != nil {
			return err
		}

		if taken {
			return domain.ErrSeatAlreadyReserved
		}

		insertQuery := `
			INSERT INTO booking_seats (booking_id, showtime_id, seat_id, price)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`

		inserted := domain.BookingSeat{
			BookingID:  bookingID,
			ShowtimeID: booking.ShowtimeID,
			SeatID:     seatID,
			SeatRow:    seat.row,
			SeatCol:    seat.col,
			SeatType:   seat.seatType,
			Price:      seat.price,
		}

		err = tx.QueryRow(ctx, insertQuery, bookingID, booking.ShowtimeID, seatID, seat.price).Scan(&inserted.CreatedAt)
		if err != nil {
			return err
		}

		err = recomputeTotal(ctx, tx, bookingID, now)
		if err != nil {
			return err
		}

		hold = &inserted
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return hold, created, nil
}

func (p *PostgresBookingRepository) RemoveSeat(ctx context.Context, bookingID, seatID int) (bool, error) {
	now := p.clock.Now()
	removed := false

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		booking, err := lockBookingRow(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if booking.Status != domain.BookingStatusSelectingSeats {
			return domain.ErrBookingNotActive
		}

		if !booking.SelectSeatExpiresAt.After(now) {
			return domain.ErrBookingExpired
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM booking_seats WHERE booking_id = $1 AND seat_id = $2`,
			bookingID, seatID)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return nil
		}

		removed = true

		return recomputeTotal(ctx, tx, bookingID, now)
	})
	if err != nil {
		return false, err
	}

	return removed, nil
}

func (p *PostgresBookingRepository) TransitionToPayment(
	ctx context.Context,
	bookingID int,
	payTimeout time.Duration) (*domain.Booking, error) {

	now := p.clock.Now()
	var booking *domain.Booking

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		current, err := lockBookingRow(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		if current.Status != domain.BookingStatusSelectingSeats {
			return domain.ErrBookingNotActive
		}

		if !current.SelectSeatExpiresAt.After(now) {
			return domain.ErrBookingExpired
		}

		var holdCount int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM booking_seats WHERE booking_id = $1`,
			bookingID).Scan(&holdCount)
		if err != nil {
			return err
		}

		if holdCount == 0 {
			return domain.ErrNoSeatsSelected
		}

		query := `
			UPDATE bookings
			SET status = 'awaiting_payment', pay_expires_at = $2, updated_at = $3
			WHERE id = $1
			RETURNING id, user_id, showtime_id, status, total_amount,
				select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
		`

		updated, err := scanBooking(tx.QueryRow(ctx, query, bookingID, now.Add(payTimeout), now))
		if err != nil {
			return err
		}

		seats, err := selectBookingSeats(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		updated.Seats = seats
		booking = updated

		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

func (p *PostgresBookingRepository) SetPaymentRef(ctx context.Context, bookingID int, ref string) error {
	now := p.clock.Now()

	tag, err := p.db.Exec(ctx, `
		UPDATE bookings SET payment_ref = $2, updated_at = $3
		WHERE id = $1 AND status = 'awaiting_payment' AND pay_expires_at > $3
	`, bookingID, ref, now)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotActive
	}

	return nil
}

// FinalizeAsPaid is a compare-and-swap on the status column: only a booking
// still in a pending state flips to paid, so a concurrent sweep of the same
// booking serializes on the row and exactly one terminal state wins.
// Replaying an already-finalized reference is a no-op.
func (p *PostgresBookingRepository) FinalizeAsPaid(ctx context.Context, ref string) (*domain.Booking, bool, error) {
	now := p.clock.Now()
	var booking *domain.Booking
	var transitioned bool

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = 'paid', updated_at = $2
			WHERE payment_ref = $1 AND status IN ('selecting_seats', 'awaiting_payment')
			RETURNING id, user_id, showtime_id, status, total_amount,
				select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
		`

		updated, err := scanBooking(tx.QueryRow(ctx, query, ref, now))
		if err == nil {
			booking = updated
			transitioned = true
			return nil
		}

		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		// No pending booking carries this reference: either it was already
		// finalized (callback replay) or it is unknown or terminal.
		current, err := scanBooking(tx.QueryRow(ctx, `
			SELECT id, user_id, showtime_id, status, total_amount,
				select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
			FROM bookings
			WHERE payment_ref = $1
		`, ref))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrUnknownTransaction
			}

			return err
		}

		if current.Status == domain.BookingStatusPaid {
			booking = current
			return nil
		}

		return domain.ErrBookingNotActive
	})
	if err != nil {
		return nil, false, err
	}

	return booking, transitioned, nil
}

func (p *PostgresBookingRepository) Cancel(ctx context.Context, bookingID int) ([]int, error) {
	now := p.clock.Now()
	var freedSeats []int

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'cancelled', updated_at = $2
			WHERE id = $1 AND status IN ('selecting_seats', 'awaiting_payment')
		`, bookingID, now)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var status domain.BookingStatus
			err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, bookingID).Scan(&status)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrRecordNotFound
				}

				return err
			}

			return domain.ErrBookingNotActive
		}

		rows, err := tx.Query(ctx,
			`DELETE FROM booking_seats WHERE booking_id = $1 RETURNING seat_id`,
			bookingID)
		if err != nil {
			return err
		}

		freedSeats, err = pgx.CollectRows(rows, pgx.RowTo[int])

		return err
	})
	if err != nil {
		return nil, err
	}

	return freedSeats, nil
}

func (p *PostgresBookingRepository) DueForExpiry(ctx context.Context, limit int) ([]int, error) {
	now := p.clock.Now()

	rows, err := p.db.Query(ctx, `
		SELECT id FROM bookings
		WHERE (status = 'selecting_seats' AND select_seat_expires_at <= $1)
			OR (status = 'awaiting_payment' AND pay_expires_at <= $1)
		ORDER BY id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// Expire transitions one overdue booking and releases its holds. The status
// CAS makes duplicate sweeps and the finalize race benign: whoever commits
// the terminal state first wins, the loser affects zero rows.
func (p *PostgresBookingRepository) Expire(ctx context.Context, bookingID int) (*domain.ExpiredBooking, error) {
	now := p.clock.Now()
	var expired *domain.ExpiredBooking

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings SET status = 'expired', updated_at = $2
			WHERE id = $1
				AND ((status = 'selecting_seats' AND select_seat_expires_at <= $2)
					OR (status = 'awaiting_payment' AND pay_expires_at <= $2))
			RETURNING id, user_id, showtime_id
		`

		var result domain.ExpiredBooking
		err := tx.QueryRow(ctx, query, bookingID, now).Scan(&result.BookingID, &result.UserID, &result.ShowtimeID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Paid, cancelled, or already expired in the meantime.
				return nil
			}

			return err
		}

		rows, err := tx.Query(ctx,
			`DELETE FROM booking_seats WHERE booking_id = $1 RETURNING seat_id`,
			bookingID)
		if err != nil {
			return err
		}

		result.SeatIDs, err = pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return err
		}

		expired = &result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return expired, nil
}

type showtimeSeat struct {
	row      string
	col      int
	seatType string
	price    decimal.Decimal
	active   bool
}

func selectSeatForShowtime(ctx context.Context, tx pgx.Tx, showtimeID, seatID int) (*showtimeSeat, error) {
	// The join against showtimes pins the seat to the showtime's room; a
	// seat from another room simply does not exist for this booking.
	query := `
		SELECT s.seat_row, s.seat_col, COALESCE(st.name, ''),
			sh.price + COALESCE(st.extra_price, 0), s.is_active
		FROM seats s
		JOIN showtimes sh ON sh.room_id = s.room_id AND sh.id = $1
		LEFT JOIN seat_types st ON st.id = s.seat_type_id
		WHERE s.id = $2
	`

	var seat showtimeSeat
	err := tx.QueryRow(ctx, query, showtimeID, seatID).Scan(
		&seat.row,
		&seat.col,
		&seat.seatType,
		&seat.price,
		&seat.active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &seat, nil
}

func selectHold(ctx context.Context, tx pgx.Tx, bookingID, seatID int) (*domain.BookingSeat, error) {
	query := `
		SELECT bs.booking_id, bs.showtime_id, bs.seat_id,
			s.seat_row, s.seat_col, COALESCE(st.name, ''), bs.price, bs.created_at
		FROM booking_seats bs
		JOIN seats s ON s.id = bs.seat_id
		LEFT JOIN seat_types st ON st.id = s.seat_type_id
		WHERE bs.booking_id = $1 AND bs.seat_id = $2
	`

	var seat domain.BookingSeat
	err := tx.QueryRow(ctx, query, bookingID, seatID).Scan(
		&seat.BookingID,
		&seat.ShowtimeID,
		&seat.SeatID,
		&seat.SeatRow,
		&seat.SeatCol,
		&seat.SeatType,
		&seat.Price,
		&seat.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &seat, nil
}

func selectBookingSeats(ctx context.Context, tx pgx.Tx, bookingID int) ([]domain.BookingSeat, error) {
	query := `
		SELECT bs.booking_id, bs.showtime_id, bs.seat_id,
			s.seat_row, s.seat_col, COALESCE(st.name, ''), bs.price, bs.created_at
		FROM booking_seats bs
		JOIN seats s ON s.id = bs.seat_id
		LEFT JOIN seat_types st ON st.id = s.seat_type_id
		WHERE bs.booking_id = $1
		ORDER BY s.seat_row, s.seat_col
	`

	rows, err := tx.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.BookingSeat, 0)

	for rows.Next() {
		var seat domain.BookingSeat

		err = rows.Scan(
			&seat.BookingID,
			&seat.ShowtimeID,
			&seat.SeatID,
			&seat.SeatRow,
			&seat.SeatCol,
			&seat.SeatType,
			&seat.Price,
			&seat.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seats, nil
}

func lockBookingRow(ctx context.Context, tx pgx.Tx, bookingID int) (*domain.Booking, error) {
	query := `
		SELECT id, user_id, showtime_id, status, total_amount,
			select_seat_expires_at, pay_expires_at, payment_ref, created_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`

	booking, err := scanBooking(tx.QueryRow(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return booking, nil
}

func recomputeTotal(ctx context.Context, tx pgx.Tx, bookingID int, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET total_amount = (
			SELECT COALESCE(SUM(price), 0) FROM booking_seats WHERE booking_id = $1
		), updated_at = $2
		WHERE id = $1
	`, bookingID, now)

	return err
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var booking domain.Booking

	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.ShowtimeID,
		&booking.Status,
		&booking.TotalAmount,
		&booking.SelectSeatExpiresAt,
		&booking.PayExpiresAt,
		&booking.PaymentRef,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &booking, nil
}
