package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/moviex/booking-system/api"
	"github.com/moviex/booking-system/internal/domain"
)

func (app *Application) GetSeatMapByShowtime(w http.ResponseWriter, r *http.Request) {
	showtimeId, err := app.readIDParam(r, "showtimeId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)

	seatMap, err := app.seatRepo.GetSeatMapByShowtime(r.Context(), showtimeId, userId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("showtime %d does not exist", showtimeId))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	err = app.writeJSON(w, http.StatusOK, toSeatMapResponse(seatMap), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// AddSeat puts a hold on the seat for the caller's booking. Adding a seat the
// booking already holds is a no-op that returns the current state.
func (app *Application) AddSeat(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	seatId, err := app.readIDParam(r, "seatId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seat, created, err := app.bookingRepo.AddSeat(r.Context(), booking.ID, seatId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSeatAlreadyReserved):
			logger.Info("seat contention", "booking_id", booking.ID, "seat_id", seatId)
			app.editConflictResponseWithErr(w, r, errors.New(ErrSeatTaken))
		case errors.Is(err, domain.ErrSeatNotBookable):
			app.badRequestResponse(w, r, fmt.Errorf("seat %d cannot be booked for this showtime", seatId))
		case errors.Is(err, domain.ErrBookingExpired):
			app.editConflictResponseWithErr(w, r, errors.New(ErrSessionExpired))
		case errors.Is(err, domain.ErrBookingNotActive):
			app.editConflictResponseWithErr(w, r, fmt.Errorf("booking is no longer in seat selection"))
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	updated, err := app.bookingRepo.GetByID(r.Context(), booking.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if created {
		app.publishSeatEvent(r.Context(), domain.SeatEvent{
			Event:       domain.SeatEventAdded,
			ShowtimeID:  booking.ShowtimeID,
			SeatID:      seatId,
			ActorUserID: booking.UserID,
		})
	}

	response := api.SeatAddedResponse{
		SeatId:      seat.SeatID,
		Price:       seat.Price,
		TotalAmount: updated.TotalAmount,
	}

	err = app.writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// RemoveSeat releases one of the booking's holds. Removing a seat the booking
// does not hold succeeds without effect.
func (app *Application) RemoveSeat(w http.ResponseWriter, r *http.Request) {
	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	seatId, err := app.readIDParam(r, "seatId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	removed, err := app.bookingRepo.RemoveSeat(r.Context(), booking.ID, seatId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingExpired):
			app.editConflictResponseWithErr(w, r, errors.New(ErrSessionExpired))
		case errors.Is(err, domain.ErrBookingNotActive):
			app.editConflictResponseWithErr(w, r, fmt.Errorf("booking is no longer in seat selection"))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	updated, err := app.bookingRepo.GetByID(r.Context(), booking.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if removed {
		app.publishSeatEvent(r.Context(), domain.SeatEvent{
			Event:       domain.SeatEventRemoved,
			ShowtimeID:  booking.ShowtimeID,
			SeatID:      seatId,
			ActorUserID: booking.UserID,
		})
	}

	response := api.SeatRemovedResponse{
		SeatId:      seatId,
		TotalAmount: updated.TotalAmount,
	}

	err = app.writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatMapResponse(seatMap *domain.ShowtimeSeatMap) api.SeatMapResponse {
	response := api.SeatMapResponse{
		ShowtimeId: seatMap.ShowtimeID,
		MovieTitle: seatMap.MovieTitle,
		RoomId:     seatMap.RoomID,
		RoomName:   seatMap.RoomName,
		BasePrice:  seatMap.BasePrice,
		SeatRows:   make([]api.SeatRow, 0),
	}

	var currentRow *api.SeatRow

	for _, seat := range seatMap.Seats {
		if currentRow == nil || currentRow.Row != seat.Row {
			response.SeatRows = append(response.SeatRows, api.SeatRow{Row: seat.Row})
			currentRow = &response.SeatRows[len(response.SeatRows)-1]
		}

		currentRow.Seats = append(currentRow.Seats, api.Seat{
			Id:         seat.ID,
			Row:        seat.Row,
			Column:     seat.Col,
			Type:       seat.Type,
			ExtraPrice: seat.ExtraPrice,
			Active:     seat.Active,
			Status:     string(seat.State),
		})
	}

	return response
}
