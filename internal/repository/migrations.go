package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema. Statements are idempotent so repeated startups
// are safe.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	migrations := []string{
		createUsersTable,
		createMoviesTable,
		createRoomsTable,
		createSeatTypesTable,
		createSeatsTable,
		createShowtimesTable,
		createBookingsTable,
		createBookingSeatsTable,
		createActiveBookingIndex,
		createBookingDeadlineIndex,
		createHoldShowtimeSeatIndex,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id SERIAL PRIMARY KEY,
	email VARCHAR(255) UNIQUE NOT NULL,
	name VARCHAR(200) NOT NULL,
	role VARCHAR(10) NOT NULL DEFAULT 'user',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createMoviesTable = `
CREATE TABLE IF NOT EXISTS movies (
	id SERIAL PRIMARY KEY,
	title VARCHAR(200) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	duration_minutes INT NOT NULL,
	poster_url TEXT NOT NULL DEFAULT ''
)`

const createRoomsTable = `
CREATE TABLE IF NOT EXISTS rooms (
	id SERIAL PRIMARY KEY,
	name VARCHAR(50) NOT NULL,
	total_seats INT NOT NULL
)`

const createSeatTypesTable = `
CREATE TABLE IF NOT EXISTS seat_types (
	id SERIAL PRIMARY KEY,
	name VARCHAR(50) NOT NULL,
	extra_price NUMERIC(10, 2) NOT NULL DEFAULT 0
)`

const createSeatsTable = `
CREATE TABLE IF NOT EXISTS seats (
	id SERIAL PRIMARY KEY,
	room_id INT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	seat_row VARCHAR(2) NOT NULL,
	seat_col INT NOT NULL,
	seat_type_id INT REFERENCES seat_types(id) ON DELETE SET NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE (room_id, seat_row, seat_col)
)`

const createShowtimesTable = `
CREATE TABLE IF NOT EXISTS showtimes (
	id SERIAL PRIMARY KEY,
	movie_id INT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
	room_id INT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	price NUMERIC(10, 2) NOT NULL
)`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
	id SERIAL PRIMARY KEY,
	user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	showtime_id INT NOT NULL REFERENCES showtimes(id) ON DELETE CASCADE,
	status VARCHAR(20) NOT NULL DEFAULT 'selecting_seats',
	total_amount NUMERIC(10, 2) NOT NULL DEFAULT 0,
	select_seat_expires_at TIMESTAMPTZ NOT NULL,
	pay_expires_at TIMESTAMPTZ,
	payment_ref VARCHAR(64) UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createBookingSeatsTable = `
CREATE TABLE IF NOT EXISTS booking_seats (
	booking_id INT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
	showtime_id INT NOT NULL REFERENCES showtimes(id) ON DELETE CASCADE,
	seat_id INT NOT NULL REFERENCES seats(id) ON DELETE CASCADE,
	price NUMERIC(10, 2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (booking_id, seat_id)
)`

// One live booking per (user, showtime); expired rows not yet swept are
// retired by the get-or-create path before insert.
const createActiveBookingIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_active
ON bookings (user_id, showtime_id)
WHERE status IN ('selecting_seats', 'awaiting_payment')`

const createBookingDeadlineIndex = `
CREATE INDEX IF NOT EXISTS ix_bookings_deadlines
ON bookings (status, select_seat_expires_at, pay_expires_at)
WHERE status IN ('selecting_seats', 'awaiting_payment')`

const createHoldShowtimeSeatIndex = `
CREATE INDEX IF NOT EXISTS ix_booking_seats_showtime_seat
ON booking_seats (showtime_id, seat_id)`
