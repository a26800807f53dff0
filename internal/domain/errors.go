package domain

import "errors"

var (
	ErrRecordNotFound      = errors.New("record not found")
	ErrEditConflict        = errors.New("edit conflict")
	ErrSeatAlreadyReserved = errors.New("seat is already held or reserved")
	ErrSeatNotBookable     = errors.New("seat is not open for booking")
	ErrBookingNotActive    = errors.New("booking is no longer active")
	ErrBookingExpired      = errors.New("booking deadline has passed")
	ErrNoSeatsSelected     = errors.New("booking has no seats selected")
	ErrPermissionDenied    = errors.New("actor is not allowed to modify this booking")
	ErrInvalidSignature    = errors.New("callback signature verification failed")
	ErrUnknownTransaction  = errors.New("unknown payment transaction reference")
	ErrGatewayRejected     = errors.New("payment gateway rejected the order")
	ErrGatewayUnreachable  = errors.New("payment gateway unreachable")
)
