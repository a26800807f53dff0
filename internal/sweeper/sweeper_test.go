package sweeper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/mocks"
)

type SweeperTestSuite struct {
	suite.Suite
	bookingRepo *mocks.MockBookingRepo
	publisher   *mocks.RecordingPublisher
	sweeper     *Sweeper
}

func (s *SweeperTestSuite) SetupTest() {
	s.bookingRepo = new(mocks.MockBookingRepo)
	s.publisher = new(mocks.RecordingPublisher)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.sweeper = New(s.bookingRepo, s.publisher, logger, time.Minute)
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperTestSuite))
}

func (s *SweeperTestSuite) TestSweepExpiresOverdueBookings() {
	s.bookingRepo.On("DueForExpiry", mock.Anything, defaultBatchSize).Return([]int{1}, nil)
	s.bookingRepo.On("Expire", mock.Anything, 1).Return(&domain.ExpiredBooking{
		BookingID:  1,
		UserID:     7,
		ShowtimeID: 3,
		SeatIDs:    []int{11, 12},
	}, nil)

	s.sweeper.Sweep(context.Background())

	s.bookingRepo.AssertExpectations(s.T())

	s.Require().Len(s.publisher.SeatEvents, 2)
	for i, seatID := range []int{11, 12} {
		s.Equal(domain.SeatEventRemoved, s.publisher.SeatEvents[i].Event)
		s.Equal(seatID, s.publisher.SeatEvents[i].SeatID)
		s.Equal(3, s.publisher.SeatEvents[i].ShowtimeID)
	}

	s.Require().Len(s.publisher.BookingEvents, 1)
	s.Equal(domain.BookingEventExpired, s.publisher.BookingEvents[0].Event)
	s.Equal(1, s.publisher.BookingEvents[0].BookingID)
}

func (s *SweeperTestSuite) TestSweepIsolatesPerBookingFailures() {
	s.bookingRepo.On("DueForExpiry", mock.Anything, defaultBatchSize).Return([]int{1, 2, 3}, nil)
	s.bookingRepo.On("Expire", mock.Anything, 1).Return(nil, fmt.Errorf("deadlock detected"))
	s.bookingRepo.On("Expire", mock.Anything, 2).Return(&domain.ExpiredBooking{
		BookingID:  2,
		UserID:     8,
		ShowtimeID: 3,
		SeatIDs:    []int{21},
	}, nil)
	s.bookingRepo.On("Expire", mock.Anything, 3).Return(&domain.ExpiredBooking{
		BookingID:  3,
		UserID:     9,
		ShowtimeID: 4,
		SeatIDs:    []int{31},
	}, nil)

	s.sweeper.Sweep(context.Background())

	s.bookingRepo.AssertExpectations(s.T())

	s.Len(s.publisher.SeatEvents, 2)
	s.Len(s.publisher.BookingEvents, 2)
}

func (s *SweeperTestSuite) TestSweepSkipsBookingsFinalizedMeanwhile() {
	s.bookingRepo.On("DueForExpiry", mock.Anything, defaultBatchSize).Return([]int{1}, nil)
	s.bookingRepo.On("Expire", mock.Anything, 1).Return(nil, nil)

	s.sweeper.Sweep(context.Background())

	s.bookingRepo.AssertExpectations(s.T())

	s.Empty(s.publisher.SeatEvents)
	s.Empty(s.publisher.BookingEvents)
}

func (s *SweeperTestSuite) TestSweepStopsOnListFailure() {
	s.bookingRepo.On("DueForExpiry", mock.Anything, defaultBatchSize).
		Return(nil, fmt.Errorf("connection refused"))

	s.sweeper.Sweep(context.Background())

	s.bookingRepo.AssertExpectations(s.T())
	s.bookingRepo.AssertNotCalled(s.T(), "Expire", mock.Anything, mock.Anything)
}

func (s *SweeperTestSuite) TestStartAndStop() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := New(s.bookingRepo, s.publisher, logger, 10*time.Millisecond)

	s.bookingRepo.On("DueForExpiry", mock.Anything, defaultBatchSize).Return([]int{}, nil).Maybe()

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("sweeper did not stop")
	}
}
