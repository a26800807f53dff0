package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/moviex/booking-system/api"
	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/mocks"
)

type BookingsTestSuite struct {
	suite.Suite
	app          *Application
	bookingRepo  *mocks.MockBookingRepo
	showtimeRepo *mocks.MockShowtimeRepo
	publisher    *mocks.RecordingPublisher
}

func (s *BookingsTestSuite) SetupTest() {
	s.bookingRepo = new(mocks.MockBookingRepo)
	s.showtimeRepo = new(mocks.MockShowtimeRepo)
	s.publisher = new(mocks.RecordingPublisher)

	s.app = newTestApplication(func(a *Application) {
		a.bookingRepo = s.bookingRepo
		a.showtimeRepo = s.showtimeRepo
		a.publisher = s.publisher
	})
}

func TestBookingsSuite(t *testing.T) {
	suite.Run(t, new(BookingsTestSuite))
}

func selectingBooking() *domain.Booking {
	return &domain.Booking{
		ID:                  1,
		UserID:              7,
		ShowtimeID:          3,
		Status:              domain.BookingStatusSelectingSeats,
		TotalAmount:         decimal.Zero,
		SelectSeatExpiresAt: testNow.Add(5 * time.Minute),
		Seats:               []domain.BookingSeat{},
		CreatedAt:           testNow,
	}
}

func (s *BookingsTestSuite) TestCreateOrContinueBooking() {
	tests := []struct {
		name           string
		body           any
		setupMocks     func()
		wantStatus     int
		wantErrMessage string
		wantSeatEvents int
	}{
		{
			name:           "should fail when showtime ID is missing",
			body:           api.CreateBookingRequest{},
			wantStatus:     http.StatusUnprocessableEntity,
			wantErrMessage: "is required",
		},
		{
			name: "should fail when showtime does not exist",
			body: api.CreateBookingRequest{ShowtimeId: 999},
			setupMocks: func() {
				s.showtimeRepo.On("GetByID", mock.Anything, 999).Return(nil, domain.ErrRecordNotFound)
			},
			wantStatus:     http.StatusNotFound,
			wantErrMessage: "showtime 999 does not exist",
		},
		{
			name: "should fail when database error occurs",
			body: api.CreateBookingRequest{ShowtimeId: 3},
			setupMocks: func() {
				s.showtimeRepo.On("GetByID", mock.Anything, 3).Return(&domain.Showtime{ID: 3}, nil)
				s.bookingRepo.On("GetOrCreate", mock.Anything, 7, 3, 5*time.Minute).
					Return(nil, nil, fmt.Errorf("database error"))
			},
			wantStatus:     http.StatusInternalServerError,
			wantErrMessage: ErrInternalServer,
		},
		{
			name: "should return the booking with valid input",
			body: api.CreateBookingRequest{ShowtimeId: 3},
			setupMocks: func() {
				s.showtimeRepo.On("GetByID", mock.Anything, 3).Return(&domain.Showtime{ID: 3}, nil)
				s.bookingRepo.On("GetOrCreate", mock.Anything, 7, 3, 5*time.Minute).
					Return(selectingBooking(), nil, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "should announce seats freed by retiring a stale booking",
			body: api.CreateBookingRequest{ShowtimeId: 3},
			setupMocks: func() {
				s.showtimeRepo.On("GetByID", mock.Anything, 3).Return(&domain.Showtime{ID: 3}, nil)
				s.bookingRepo.On("GetOrCreate", mock.Anything, 7, 3, 5*time.Minute).
					Return(selectingBooking(), []int{11, 12}, nil)
			},
			wantStatus:     http.StatusOK,
			wantSeatEvents: 2,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			defer s.bookingRepo.AssertExpectations(s.T())
			defer s.showtimeRepo.AssertExpectations(s.T())

			if tt.setupMocks != nil {
				tt.setupMocks()
			}

			w, r := executeRequest(s.T(), http.MethodPost, "/bookings", tt.body)
			r = withUser(r, 7)

			s.app.CreateOrContinueBooking(w, r)

			s.Equal(tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				var response api.BookingResponse
				s.Require().NoError(json.NewDecoder(w.Body).Decode(&response))
				s.Equal(1, response.Id)
				s.Equal(3, response.ShowtimeId)
				s.Equal("selecting_seats", response.Status)
				s.Require().NotNil(response.RemainingSeconds)
				s.Equal(300, *response.RemainingSeconds)
			}

			s.Len(s.publisher.SeatEvents, tt.wantSeatEvents)
			for _, event := range s.publisher.SeatEvents {
				s.Equal(domain.SeatEventRemoved, event.Event)
				s.Equal(3, event.ShowtimeID)
			}

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}

func (s *BookingsTestSuite) TestGetBooking() {
	tests := []struct {
		name           string
		bookingID      string
		userID         int
		setupMocks     func()
		wantStatus     int
		wantErrMessage string
	}{
		{
			name:           "should fail when booking ID is not numeric",
			bookingID:      "abc",
			userID:         7,
			wantStatus:     http.StatusBadRequest,
			wantErrMessage: "invalid bookingId parameter",
		},
		{
			name:      "should fail when booking does not exist",
			bookingID: "999",
			userID:    7,
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 999).Return(nil, domain.ErrRecordNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:      "should fail when requester does not own the booking",
			bookingID: "1",
			userID:    8,
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:      "should return the booking for its owner",
			bookingID: "1",
			userID:    7,
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			defer s.bookingRepo.AssertExpectations(s.T())

			if tt.setupMocks != nil {
				tt.setupMocks()
			}

			w, r := executeRequest(s.T(), http.MethodGet, "/bookings/"+tt.bookingID, nil)
			r = withUser(r, tt.userID)
			r = withURLParams(r, map[string]string{"bookingId": tt.bookingID})

			s.app.GetBooking(w, r)

			s.Equal(tt.wantStatus, w.Code)

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}

func (s *BookingsTestSuite) TestCheckoutBooking() {
	awaiting := selectingBooking()
	awaiting.Status = domain.BookingStatusAwaitingPayment
	awaiting.PayExpiresAt = ptr(testNow.Add(15 * time.Minute))
	awaiting.TotalAmount = decimal.NewFromInt(30)

	tests := []struct {
		name           string
		setupMocks     func()
		wantStatus     int
		wantErrMessage string
		wantEvent      bool
	}{
		{
			name: "should fail when no seats are selected",
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("TransitionToPayment", mock.Anything, 1, 15*time.Minute).
					Return(nil, domain.ErrNoSeatsSelected)
			},
			wantStatus:     http.StatusBadRequest,
			wantErrMessage: "select at least one seat before checking out",
		},
		{
			name: "should fail when the selection window has passed",
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("TransitionToPayment", mock.Anything, 1, 15*time.Minute).
					Return(nil, domain.ErrBookingExpired)
			},
			wantStatus:     http.StatusConflict,
			wantErrMessage: ErrSessionExpired,
		},
		{
			name: "should fail when the booking is already finalized",
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("TransitionToPayment", mock.Anything, 1, 15*time.Minute).
					Return(nil, domain.ErrBookingNotActive)
			},
			wantStatus:     http.StatusConflict,
			wantErrMessage: "booking is no longer open for checkout",
		},
		{
			name: "should transition to awaiting payment with valid input",
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("TransitionToPayment", mock.Anything, 1, 15*time.Minute).
					Return(awaiting, nil)
			},
			wantStatus: http.StatusOK,
			wantEvent:  true,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			defer s.bookingRepo.AssertExpectations(s.T())

			tt.setupMocks()

			w, r := executeRequest(s.T(), http.MethodPost, "/bookings/1/checkout", nil)
			r = withUser(r, 7)
			r = withURLParams(r, map[string]string{"bookingId": "1"})

			s.app.CheckoutBooking(w, r)

			s.Equal(tt.wantStatus, w.Code)

			if tt.wantEvent {
				s.Require().Len(s.publisher.BookingEvents, 1)
				s.Equal(domain.BookingEventAwaitingPayment, s.publisher.BookingEvents[0].Event)
				s.Equal(1, s.publisher.BookingEvents[0].BookingID)
			} else {
				s.Empty(s.publisher.BookingEvents)
			}

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}

func (s *BookingsTestSuite) TestCancelBooking() {
	tests := []struct {
		name           string
		userID         int
		role           string
		setupMocks     func()
		wantStatus     int
		wantErrMessage string
		wantSeatEvents int
	}{
		{
			name:   "should fail when requester is neither owner nor admin",
			userID: 8,
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:   "should fail when booking is already finalized",
			userID: 7,
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("Cancel", mock.Anything, 1).Return(nil, domain.ErrBookingNotActive)
			},
			wantStatus:     http.StatusConflict,
			wantErrMessage: "booking is already finalized",
		},
		{
			name:   "should cancel and release seats for the owner",
			userID: 7,
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("Cancel", mock.Anything, 1).Return([]int{11, 12}, nil)
			},
			wantStatus:     http.StatusNoContent,
			wantSeatEvents: 2,
		},
		{
			name:   "should allow an admin to cancel another user's booking",
			userID: 99,
			role:   "admin",
			setupMocks: func() {
				s.bookingRepo.On("GetByID", mock.Anything, 1).Return(selectingBooking(), nil)
				s.bookingRepo.On("Cancel", mock.Anything, 1).Return([]int{11}, nil)
			},
			wantStatus:     http.StatusNoContent,
			wantSeatEvents: 1,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			defer s.bookingRepo.AssertExpectations(s.T())

			tt.setupMocks()

			w, r := executeRequest(s.T(), http.MethodDelete, "/bookings/1", nil)
			r = withUser(r, tt.userID)
			if tt.role != "" {
				r = withRole(r, tt.role)
			}
			r = withURLParams(r, map[string]string{"bookingId": "1"})

			s.app.CancelBooking(w, r)

			s.Equal(tt.wantStatus, w.Code)

			s.Len(s.publisher.SeatEvents, tt.wantSeatEvents)
			for _, event := range s.publisher.SeatEvents {
				s.Equal(domain.SeatEventRemoved, event.Event)
				s.Equal(3, event.ShowtimeID)
			}

			if tt.wantStatus == http.StatusNoContent {
				s.Require().Len(s.publisher.BookingEvents, 1)
				s.Equal(domain.BookingEventCancelled, s.publisher.BookingEvents[0].Event)
			}

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}
