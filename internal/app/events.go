package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/moviex/booking-system/internal/domain"
	"github.com/moviex/booking-system/internal/realtime"
)

const sseHeartbeatInterval = 30 * time.Second

// ShowtimeEvents streams seat hold and release events for a showtime over
// server-sent events. Delivery is best effort: a client that falls behind
// misses events and should re-fetch the seat map after reconnecting.
func (app *Application) ShowtimeEvents(w http.ResponseWriter, r *http.Request) {
	showtimeId, err := app.readIDParam(r, "showtimeId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	_, err = app.showtimeRepo.GetByID(r.Context(), showtimeId)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponseWithErr(w, r, fmt.Errorf("showtime %d does not exist", showtimeId))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	app.streamEvents(w, r, realtime.ShowtimeChannel(showtimeId))
}

// BookingEvents streams lifecycle events for one booking to its owner.
func (app *Application) BookingEvents(w http.ResponseWriter, r *http.Request) {
	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	app.streamEvents(w, r, realtime.BookingChannel(booking.ID))
}

func (app *Application) streamEvents(w http.ResponseWriter, r *http.Request, channel string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverErrorResponse(w, r, errors.New("response writer does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := app.hub.Subscribe(channel)
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case payload, open := <-events:
			if !open {
				return
			}

			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
