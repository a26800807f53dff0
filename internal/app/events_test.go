package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/mocks"
	"github.com/moviex/booking-system/internal/realtime"
)

type EventsTestSuite struct {
	suite.Suite
	app          *Application
	bookingRepo  *mocks.MockBookingRepo
	showtimeRepo *mocks.MockShowtimeRepo
}

func (s *EventsTestSuite) SetupTest() {
	s.bookingRepo = new(mocks.MockBookingRepo)
	s.showtimeRepo = new(mocks.MockShowtimeRepo)

	s.app = newTestApplication(func(a *Application) {
		a.bookingRepo = s.bookingRepo
		a.showtimeRepo = s.showtimeRepo
	})
}

func TestEventsSuite(t *testing.T) {
	suite.Run(t, new(EventsTestSuite))
}

func (s *EventsTestSuite) waitForSubscriber(channel string) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.app.hub.SubscriberCount(channel) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}

	s.FailNow("no subscriber appeared on " + channel)
}

func (s *EventsTestSuite) TestShowtimeEventsStreamsHubPayloads() {
	s.showtimeRepo.On("GetByID", mock.Anything, 3).Return(&domain.Showtime{ID: 3}, nil)

	w, r := executeRequest(s.T(), http.MethodGet, "/showtimes/3/events", nil)
	r = withURLParams(r, map[string]string{"showtimeId": "3"})

	ctx, cancel := context.WithCancel(r.Context())
	r = r.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		s.app.ShowtimeEvents(w, r)
		close(done)
	}()

	channel := realtime.ShowtimeChannel(3)
	s.waitForSubscriber(channel)

	s.app.hub.Publish(channel, []byte(`{"event":"seat_added","showtime_id":3,"seat_id":11}`))

	// Give the stream loop a moment to flush the payload before closing.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("handler did not return after context cancellation")
	}

	s.Equal(http.StatusOK, w.Code)
	s.Equal("text/event-stream", w.Header().Get("Content-Type"))
	s.Contains(w.Body.String(), `data: {"event":"seat_added","showtime_id":3,"seat_id":11}`)
	s.Equal(0, s.app.hub.SubscriberCount(channel))
}

func (s *EventsTestSuite) TestShowtimeEventsRejectsUnknownShowtime() {
	s.showtimeRepo.On("GetByID", mock.Anything, 999).Return(nil, domain.ErrRecordNotFound)

	w, r := executeRequest(s.T(), http.MethodGet, "/showtimes/999/events", nil)
	r = withURLParams(r, map[string]string{"showtimeId": "999"})

	s.app.ShowtimeEvents(w, r)

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *EventsTestSuite) TestBookingEventsRequiresOwnership() {
	s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)

	w, r := executeRequest(s.T(), http.MethodGet, "/bookings/1/events", nil)
	r = withUser(r, 8)
	r = withURLParams(r, map[string]string{"bookingId": "1"})

	s.app.BookingEvents(w, r)

	s.Equal(http.StatusForbidden, w.Code)
}

func (s *EventsTestSuite) TestBookingEventsStreamsToOwner() {
	s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)

	w, r := executeRequest(s.T(), http.MethodGet, "/bookings/1/events", nil)
	r = withUser(r, 7)
	r = withURLParams(r, map[string]string{"bookingId": "1"})

	ctx, cancel := context.WithCancel(r.Context())
	r = r.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		s.app.BookingEvents(w, r)
		close(done)
	}()

	channel := realtime.BookingChannel(1)
	s.waitForSubscriber(channel)

	s.app.hub.Publish(channel, []byte(`{"event":"awaiting_payment","booking_id":1}`))

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("handler did not return after context cancellation")
	}

	s.Contains(w.Body.String(), `data: {"event":"awaiting_payment","booking_id":1}`)
}
