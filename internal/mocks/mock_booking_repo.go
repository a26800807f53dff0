package mocks

import (
	"context"
	"time"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepo struct {
	mock.Mock
	domain.BookingRepository
}

func (m *MockBookingRepo) GetOrCreate(ctx context.Context, userID, showtimeID int, selectTimeout time.Duration) (*domain.Booking, []int, error) {
	args := m.Called(ctx, userID, showtimeID, selectTimeout)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}

	var freed []int
	if args.Get(1) != nil {
		freed = args.Get(1).([]int)
	}

	return args.Get(0).(*domain.Booking), freed, args.Error(2)
}

func (m *MockBookingRepo) GetByID(ctx context.Context, id int) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepo) AddSeat(ctx context.Context, bookingID, seatID int) (*domain.BookingSeat, bool, error) {
	args := m.Called(ctx, bookingID, seatID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.BookingSeat), args.Bool(1), args.Error(2)
}

func (m *MockBookingRepo) RemoveSeat(ctx context.Context, bookingID, seatID int) (bool, error) {
	args := m.Called(ctx, bookingID, seatID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepo) TransitionToPayment(ctx context.Context, bookingID int, payTimeout time.Duration) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, payTimeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepo) SetPaymentRef(ctx context.Context, bookingID int, ref string) error {
	args := m.Called(ctx, bookingID, ref)
	return args.Error(0)
}

func (m *MockBookingRepo) FinalizeAsPaid(ctx context.Context, ref string) (*domain.Booking, bool, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.Bool(1), args.Error(2)
}

func (m *MockBookingRepo) Cancel(ctx context.Context, bookingID int) ([]int, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockBookingRepo) DueForExpiry(ctx context.Context, limit int) ([]int, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockBookingRepo) Expire(ctx context.Context, bookingID int) (*domain.ExpiredBooking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExpiredBooking), args.Error(1)
}
