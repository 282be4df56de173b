package refund

import "errors"

var (
	ErrMalformedID     = errors.New("malformed id")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrAlreadyRefunded = errors.New("ticket already refunded")
	ErrEventNotFound   = errors.New("event not found")
	ErrNothingToRefund = errors.New("no active tickets to refund")
)
