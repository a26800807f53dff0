package mocks

import (
	"context"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
	domain.PaymentProvider
}

func (m *MockPaymentProvider) CreateOrder(
	ctx context.Context,
	bookingID int,
	transactionRef string,
	amount decimal.Decimal) (*domain.PaymentOrder, error) {

	args := m.Called(ctx, bookingID, transactionRef, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentOrder), args.Error(1)
}

func (m *MockPaymentProvider) VerifyCallback(data, mac string) (*domain.CallbackData, error) {
	args := m.Called(data, mac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallbackData), args.Error(1)
}

func (m *MockPaymentProvider) QueryStatus(ctx context.Context, transactionRef string) (*domain.PaymentStatus, error) {
	args := m.Called(ctx, transactionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentStatus), args.Error(1)
}
