package mocks

import (
	"context"
	"sync"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockEventPublisher struct {
	mock.Mock
	domain.EventPublisher
}

func (m *MockEventPublisher) PublishSeatEvent(ctx context.Context, event domain.SeatEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// RecordingPublisher collects published events without expectations; handy
// where the assertion is about what was (or was not) emitted.
type RecordingPublisher struct {
	mu            sync.Mutex
	SeatEvents    []domain.SeatEvent
	BookingEvents []domain.BookingEvent
}

func (p *RecordingPublisher) PublishSeatEvent(_ context.Context, event domain.SeatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SeatEvents = append(p.SeatEvents, event)
	return nil
}

func (p *RecordingPublisher) PublishBookingEvent(_ context.Context, event domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.BookingEvents = append(p.BookingEvents, event)
	return nil
}
