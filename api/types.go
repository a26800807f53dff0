// Package api holds the request and response types of the HTTP surface.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validation_errors"`
	RequestId        string            `json:"request_id,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"system_info"`
}

type CreateBookingRequest struct {
	ShowtimeId int `json:"showtime_id" validate:"required,gt=0"`
}

type BookingSeat struct {
	SeatId int             `json:"seat_id"`
	Row    string          `json:"row"`
	Column int             `json:"column"`
	Type   string          `json:"type,omitempty"`
	Price  decimal.Decimal `json:"price"`
}

type BookingResponse struct {
	Id               int             `json:"id"`
	ShowtimeId       int             `json:"showtime_id"`
	Status           string          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Seats            []BookingSeat   `json:"seats"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
	RemainingSeconds *int            `json:"remaining_seconds,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type SeatAddedResponse struct {
	SeatId      int             `json:"seat_added"`
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type SeatRemovedResponse struct {
	SeatId      int             `json:"seat_removed"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type Seat struct {
	Id         int             `json:"id"`
	Row        string          `json:"row"`
	Column     int             `json:"column"`
	Type       string          `json:"type,omitempty"`
	ExtraPrice decimal.Decimal `json:"extra_price"`
	Active     bool            `json:"active"`
	Status     string          `json:"status"`
}

type SeatRow struct {
	Row   string `json:"row"`
	Seats []Seat `json:"seats"`
}

type SeatMapResponse struct {
	ShowtimeId int             `json:"showtime_id"`
	MovieTitle string          `json:"movie_title"`
	RoomId     int             `json:"room_id"`
	RoomName   string          `json:"room_name"`
	BasePrice  decimal.Decimal `json:"base_price"`
	SeatRows   []SeatRow       `json:"seat_rows"`
}

type PaymentOrderResponse struct {
	OrderUrl       string `json:"order_url"`
	TransactionRef string `json:"transaction_ref"`
	Token          string `json:"token"`
}

type PaymentCallbackRequest struct {
	Data string `json:"data" validate:"required"`
	Mac  string `json:"mac" validate:"required"`
}

// PaymentCallbackResponse mirrors the gateway's expected acknowledgment
// codes: 1 success, 2 callback not attributable to a booking (unknown
// reference), 3 processing error.
type PaymentCallbackResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

type PaymentStatusResponse struct {
	Paid           bool            `json:"paid"`
	Amount         decimal.Decimal `json:"amount"`
	GatewayTransId string          `json:"gateway_trans_id,omitempty"`
	Message        string          `json:"message,omitempty"`
}
