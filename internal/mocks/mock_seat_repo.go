package mocks

import (
	"context"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockSeatRepo struct {
	mock.Mock
	domain.SeatRepository
}

func (m *MockSeatRepo) GetSeatMapByShowtime(ctx context.Context, showtimeID, userID int) (*domain.ShowtimeSeatMap, error) {
	args := m.Called(ctx, showtimeID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShowtimeSeatMap), args.Error(1)
}

type MockShowtimeRepo struct {
	mock.Mock
	domain.ShowtimeRepository
}

func (m *MockShowtimeRepo) GetByID(ctx context.Context, id int) (*domain.Showtime, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Showtime), args.Error(1)
}

type MockUserRepo struct {
	mock.Mock
	domain.UserRepository
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}
