package integration_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// seedShowtime inserts one movie, one five-seat room, and one showtime with a
// base price of 10. Seats A1..A5 get IDs 1..5; the showtime gets ID 1.
func seedShowtime(t testing.TB, db *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	statements := []string{
		`INSERT INTO movies (title, description, duration_minutes) VALUES ('Arrival', '', 116)`,
		`INSERT INTO rooms (name, total_seats) VALUES ('Room 1', 5)`,
		`INSERT INTO seats (room_id, seat_row, seat_col)
			SELECT 1, 'A', col FROM generate_series(1, 5) AS col`,
		`INSERT INTO showtimes (movie_id, room_id, start_time, end_time, price)
			VALUES (1, 1, '2025-06-01 22:00:00+00', '2025-06-02 00:00:00+00', 10)`,
	}

	for _, stmt := range statements {
		_, err := db.Exec(ctx, stmt)
		require.NoError(t, err)
	}
}

func createUser(t testing.TB, db *pgxpool.Pool, name string) int {
	t.Helper()

	var id int
	err := db.QueryRow(context.Background(),
		`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id`,
		fmt.Sprintf("%s@example.com", name), name).Scan(&id)
	require.NoError(t, err)

	return id
}

func bookingStatus(t testing.TB, db *pgxpool.Pool, bookingID int) string {
	t.Helper()

	var status string
	err := db.QueryRow(context.Background(),
		`SELECT status FROM bookings WHERE id = $1`, bookingID).Scan(&status)
	require.NoError(t, err)

	return status
}

func holdCount(t testing.TB, db *pgxpool.Pool, bookingID int) int {
	t.Helper()

	var count int
	err := db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM booking_seats WHERE booking_id = $1`, bookingID).Scan(&count)
	require.NoError(t, err)

	return count
}
