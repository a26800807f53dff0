package integration_test

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/repository"
)

const (
	dbName      = "booking_system"
	dbUser      = "test_user"
	dbPassword  = "test_password"
	dbImageName = "postgres:17-alpine"

	selectTimeout = 5 * time.Minute
	payTimeout    = 15 * time.Minute
)

var baseTime = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

type BaseSuite struct {
	suite.Suite
	dbContainer *PostgresContainer
	db          *pgxpool.Pool
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := getDbContainer(ctx)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return
	}

	s.dbContainer = postgresContainer

	pool, err := newDbPool(ctx, postgresContainer.ConnectionString)
	if err != nil {
		log.Printf("cannot initialize database: %s", err)
		return
	}

	s.db = pool
}

func (s *BaseSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.dbContainer != nil {
		if err := testcontainers.TerminateContainer(s.dbContainer.Container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

func (s *BaseSuite) SetupTest() {
	s.Require().NotNil(s.db, "database container is not available")

	_, err := s.db.Exec(context.Background(),
		`TRUNCATE booking_seats, bookings, showtimes, seats, seat_types, rooms, movies, users RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)

	seedShowtime(s.T(), s.db)
}

// repoAt returns a booking repository whose clock is pinned at the given
// instant, so deadline behavior can be stepped through deterministically.
func (s *BaseSuite) repoAt(now time.Time) *repository.PostgresBookingRepository {
	return repository.NewPostgresBookingRepository(s.db, domain.FixedClock{Time: now})
}
