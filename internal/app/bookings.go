package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/moviex/booking-system/api"
	"github.com/moviex/booking-system/internal/domain"
)

// CreateOrContinueBooking starts a booking for the showtime, or returns the
// caller's existing active booking for it. Safe to call repeatedly.
func (app *Application) CreateOrContinueBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.CreateBookingRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	_, err = app.showtimeRepo.GetByID(r.Context(), input.ShowtimeId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("showtime %d does not exist", input.ShowtimeId))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	userId := app.contextGetUserId(r)

	booking, freedSeats, err := app.bookingRepo.GetOrCreate(r.Context(), userId, input.ShowtimeId, app.config.booking.selectTimeout)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	// Seats released by retiring a stale predecessor booking become available
	// again here, not via the sweeper, so announce them ourselves.
	for _, seatId := range freedSeats {
		app.publishSeatEvent(r.Context(), domain.SeatEvent{
			Event:       domain.SeatEventRemoved,
			ShowtimeID:  input.ShowtimeId,
			SeatID:      seatId,
			ActorUserID: userId,
		})
	}

	logger.Info("booking started or continued", "booking_id", booking.ID, "showtime_id", booking.ShowtimeID)

	err = app.writeJSON(w, http.StatusOK, app.toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, app.toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// CheckoutBooking closes seat selection and arms the payment deadline.
func (app *Application) CheckoutBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	updated, err := app.bookingRepo.TransitionToPayment(r.Context(), booking.ID, app.config.booking.payTimeout)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoSeatsSelected):
			app.badRequestResponse(w, r, fmt.Errorf("select at least one seat before checking out"))
		case errors.Is(err, domain.ErrBookingExpired):
			logger.Warn("checkout attempt on expired booking", "booking_id", booking.ID)
			app.editConflictResponseWithErr(w, r, errors.New(ErrSessionExpired))
		case errors.Is(err, domain.ErrBookingNotActive):
			app.editConflictResponseWithErr(w, r, fmt.Errorf("booking is no longer open for checkout"))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.publishBookingEvent(r.Context(), domain.BookingEvent{
		Event:     domain.BookingEventAwaitingPayment,
		BookingID: updated.ID,
		Status:    string(updated.Status),
	})

	err = app.writeJSON(w, http.StatusOK, app.toBookingResponse(updated), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// CancelBooking voids a non-terminal booking and frees its seats. Allowed
// for the owner and for administrative actors.
func (app *Application) CancelBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	bookingId, err := app.readIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := app.bookingRepo.GetByID(r.Context(), bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	userId := app.contextGetUserId(r)
	if booking.UserID != userId && !app.contextIsAdmin(r) {
		app.forbiddenResponse(w, r)
		return
	}

	freedSeats, err := app.bookingRepo.Cancel(r.Context(), bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingNotActive):
			app.editConflictResponseWithErr(w, r, fmt.Errorf("booking is already finalized"))
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	logger.Info("booking cancelled", "booking_id", bookingId, "freed_seats", len(freedSeats))

	for _, seatId := range freedSeats {
		app.publishSeatEvent(r.Context(), domain.SeatEvent{
			Event:       domain.SeatEventRemoved,
			ShowtimeID:  booking.ShowtimeID,
			SeatID:      seatId,
			ActorUserID: userId,
		})
	}

	app.publishBookingEvent(r.Context(), domain.BookingEvent{
		Event:     domain.BookingEventCancelled,
		BookingID: bookingId,
		Status:    string(domain.BookingStatusCancelled),
	})

	w.WriteHeader(http.StatusNoContent)
}

// fetchOwnedBooking loads the booking from the URL and enforces ownership,
// writing the error response itself when something is off.
func (app *Application) fetchOwnedBooking(w http.ResponseWriter, r *http.Request) (*domain.Booking, bool) {
	bookingId, err := app.readIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, false
	}

	booking, err := app.bookingRepo.GetByID(r.Context(), bookingId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return nil, false
	}

	if booking.UserID != app.contextGetUserId(r) {
		app.contextGetLogger(r).Warn("booking access denied", "booking_id", booking.ID, "error", domain.ErrPermissionDenied)
		app.forbiddenResponse(w, r)
		return nil, false
	}

	return booking, true
}

// publishSeatEvent fans the event out on a best-effort basis; failures are
// logged and never fail the request that produced the event.
func (app *Application) publishSeatEvent(ctx context.Context, event domain.SeatEvent) {
	err := app.publisher.PublishSeatEvent(ctx, event)
	if err != nil {
		app.logger.Error("failed to publish seat event", "showtime_id", event.ShowtimeID, "seat_id", event.SeatID, "error", err)
	}
}

func (app *Application) publishBookingEvent(ctx context.Context, event domain.BookingEvent) {
	err := app.publisher.PublishBookingEvent(ctx, event)
	if err != nil {
		app.logger.Error("failed to publish booking event", "booking_id", event.BookingID, "error", err)
	}
}

func (app *Application) toBookingResponse(booking *domain.Booking) api.BookingResponse {
	resp := api.BookingResponse{
		Id:          booking.ID,
		ShowtimeId:  booking.ShowtimeID,
		Status:      string(booking.Status),
		TotalAmount: booking.TotalAmount,
		Seats:       make([]api.BookingSeat, 0, len(booking.Seats)),
		CreatedAt:   booking.CreatedAt,
	}

	for _, seat := range booking.Seats {
		resp.Seats = append(resp.Seats, api.BookingSeat{
			SeatId: seat.SeatID,
			Row:    seat.SeatRow,
			Column: seat.SeatCol,
			Type:   seat.SeatType,
			Price:  seat.Price,
		})
	}

	if deadline, ok := booking.Deadline(); ok {
		resp.ExpiresAt = &deadline

		remaining := int(deadline.Sub(app.clock.Now()).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.RemainingSeconds = &remaining
	}

	return resp
}
