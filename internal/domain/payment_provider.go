package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentOrder is the gateway's answer to a created order: where to send the
// user plus an opaque token for the gateway's app flow.
type PaymentOrder struct {
	OrderURL string
	Token    string
}

// PaymentStatus is the result of a synchronous status query at the gateway.
type PaymentStatus struct {
	Paid           bool
	Amount         decimal.Decimal
	GatewayTransID string
	Message        string
}

// CallbackData is the verified, decoded payload of an asynchronous payment
// callback.
type CallbackData struct {
	TransactionRef string
	GatewayTransID string
	Amount         decimal.Decimal
}

// PaymentProvider is the external gateway boundary. CreateOrder and
// QueryStatus talk to the gateway over the wire; VerifyCallback checks the
// MAC of an asynchronous callback and decodes its payload without any I/O.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, bookingID int, transactionRef string, amount decimal.Decimal) (*PaymentOrder, error)
	VerifyCallback(data, mac string) (*CallbackData, error)
	QueryStatus(ctx context.Context, transactionRef string) (*PaymentStatus, error)
}
