package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (app *Application) routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(app.recoverPanic)
	r.Use(app.requestLogger)
	r.Use(app.sessionManager.LoadAndSave)

	r.Get("/health", app.GetHealth)

	r.Route("/showtimes/{showtimeId}", func(r chi.Router) {
		r.With(app.requireAuthentication).Get("/seats", app.GetSeatMapByShowtime)
		r.Get("/events", app.ShowtimeEvents)
	})

	r.With(app.requireAuthentication).Route("/bookings", func(r chi.Router) {
		r.Post("/", app.CreateOrContinueBooking)

		r.Route("/{bookingId}", func(r chi.Router) {
			r.Get("/", app.GetBooking)
			r.Delete("/", app.CancelBooking)
			r.Post("/checkout", app.CheckoutBooking)
			r.Get("/events", app.BookingEvents)

			r.Post("/seats/{seatId}", app.AddSeat)
			r.Delete("/seats/{seatId}", app.RemoveSeat)

			r.Post("/payment", app.CreatePaymentOrder)
			r.Get("/payment", app.GetPaymentStatus)
		})
	})

	r.Post("/payments/callback", app.PaymentCallback)

	return r
}
