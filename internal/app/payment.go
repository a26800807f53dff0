package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/moviex/booking-system/api"
	"github.com/moviex/booking-system/internal/domain"
)

// CreatePaymentOrder opens a payment order at the gateway for a booking that
// is awaiting payment, and pins the gateway transaction reference on the
// booking so the asynchronous callback can find it.
func (app *Application) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	if booking.Status != domain.BookingStatusAwaitingPayment {
		app.editConflictResponseWithErr(w, r, fmt.Errorf("booking must be checked out before paying"))
		return
	}

	transactionRef := app.newTransactionRef(booking.ID)

	order, err := app.paymentProvider.CreateOrder(r.Context(), booking.ID, transactionRef, booking.TotalAmount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGatewayUnreachable), errors.Is(err, domain.ErrGatewayRejected):
			app.upstreamUnavailableResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	err = app.bookingRepo.SetPaymentRef(r.Context(), booking.ID, transactionRef)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookingExpired):
			app.editConflictResponseWithErr(w, r, errors.New(ErrSessionExpired))
		case errors.Is(err, domain.ErrBookingNotActive):
			app.editConflictResponseWithErr(w, r, fmt.Errorf("booking is no longer awaiting payment"))
		default:
			app.serverErrorResponse(w, r, err)
		}

		return
	}

	logger.Info("payment order created", "booking_id", booking.ID, "transaction_ref", transactionRef)

	response := api.PaymentOrderResponse{
		OrderUrl:       order.OrderURL,
		TransactionRef: transactionRef,
		Token:          order.Token,
	}

	err = app.writeJSON(w, http.StatusCreated, response, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// GetPaymentStatus queries the gateway for the booking's payment outcome.
// A paid result finalizes the booking; this covers callbacks the gateway
// never managed to deliver.
func (app *Application) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	booking, ok := app.fetchOwnedBooking(w, r)
	if !ok {
		return
	}

	if booking.PaymentRef == nil {
		app.notFoundResponseWithErr(w, r, fmt.Errorf("no payment order exists for booking %d", booking.ID))
		return
	}

	status, err := app.paymentProvider.QueryStatus(r.Context(), *booking.PaymentRef)
	if err != nil {
		app.upstreamUnavailableResponse(w, r, err)
		return
	}

	if status.Paid && booking.Status != domain.BookingStatusPaid {
		_, err = app.finalizePayment(r.Context(), *booking.PaymentRef)
		if err != nil && !errors.Is(err, domain.ErrBookingNotActive) {
			app.serverErrorResponse(w, r, err)
			return
		}
	}

	response := api.PaymentStatusResponse{
		Paid:           status.Paid,
		Amount:         status.Amount,
		GatewayTransId: status.GatewayTransID,
		Message:        status.Message,
	}

	err = app.writeJSON(w, http.StatusOK, response, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// PaymentCallback handles the gateway's asynchronous payment notification.
// A callback whose MAC does not verify is rejected with 400 before any state
// is touched. Verified callbacks are always answered 200 with a gateway
// acknowledgment code: a non-1 code tells the gateway to retry or give up,
// never to treat us as down.
func (app *Application) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.PaymentCallbackRequest

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

	ack := func(code int, message string) {
		err := app.writeJSON(w, http.StatusOK, api.PaymentCallbackResponse{ReturnCode: code, ReturnMessage: message}, nil)
		if err != nil {
			app.serverErrorResponse(w, r, err)
		}
	}

	callback, err := app.paymentProvider.VerifyCallback(input.Data, input.Mac)
	if err != nil {
		logger.Warn("payment callback rejected", "error", err)
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := app.finalizePayment(r.Context(), callback.TransactionRef)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownTransaction):
			logger.Warn("payment callback for unknown transaction", "transaction_ref", callback.TransactionRef)
			ack(2, "unknown transaction")
		case errors.Is(err, domain.ErrBookingNotActive):
			logger.Warn("payment callback for finalized booking", "transaction_ref", callback.TransactionRef)
			ack(3, "booking no longer payable")
		default:
			app.logError(r, err)
			ack(3, "processing error")
		}

		return
	}

	logger.Info("booking paid", "booking_id", booking.ID, "transaction_ref", callback.TransactionRef, "gateway_trans_id", callback.GatewayTransID)

	ack(1, "success")
}

// finalizePayment marks the booking behind the transaction reference as paid
// and fans out the side effects. Already-paid bookings are returned as-is so
// gateway retries stay idempotent.
func (app *Application) finalizePayment(ctx context.Context, transactionRef string) (*domain.Booking, error) {
	booking, transitioned, err := app.bookingRepo.FinalizeAsPaid(ctx, transactionRef)
	if err != nil {
		return nil, err
	}

	if !transitioned {
		return booking, nil
	}

	app.publishBookingEvent(ctx, domain.BookingEvent{
		Event:     domain.BookingEventPaid,
		BookingID: booking.ID,
		Status:    string(booking.Status),
	})

	app.sendBookingConfirmation(booking)

	return booking, nil
}

func (app *Application) sendBookingConfirmation(paid *domain.Booking) {
	app.background(func() {
		ctx := context.Background()

		// Reload so the seat holds are populated.
		booking, err := app.bookingRepo.GetByID(ctx, paid.ID)
		if err != nil {
			app.logger.Error("failed to load booking for confirmation email", "booking_id", paid.ID, "error", err)
			return
		}

		user, err := app.userRepo.GetByID(ctx, booking.UserID)
		if err != nil {
			app.logger.Error("failed to load user for confirmation email", "booking_id", booking.ID, "error", err)
			return
		}

		showtime, err := app.showtimeRepo.GetByID(ctx, booking.ShowtimeID)
		if err != nil {
			app.logger.Error("failed to load showtime for confirmation email", "booking_id", booking.ID, "error", err)
			return
		}

		seats := make([]string, 0, len(booking.Seats))
		for _, seat := range booking.Seats {
			seats = append(seats, fmt.Sprintf("%s%d", seat.SeatRow, seat.SeatCol))
		}

		data := map[string]any{
			"BookingID":  booking.ID,
			"Name":       user.Name,
			"MovieTitle": showtime.MovieTitle,
			"RoomName":   showtime.RoomName,
			"Showtime":   showtime.StartTime.Format("Mon, 02 Jan 2006 15:04"),
			"Seats":      strings.Join(seats, ", "),
			"Total":      booking.TotalAmount.StringFixed(2),
		}

		err = app.mailer.Send(user.Email, "booking_confirmation.tmpl", data)
		if err != nil {
			app.logger.Error("failed to send confirmation email", "booking_id", booking.ID, "error", err)
		}
	})
}

// newTransactionRef builds a gateway transaction id. The gateway requires the
// yymmdd prefix to match its processing day.
func (app *Application) newTransactionRef(bookingID int) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", app.clock.Now().Format("060102"), bookingID, suffix)
}
