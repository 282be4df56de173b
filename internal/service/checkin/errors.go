package checkin

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMalformedID     = errors.New("malformed id")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrEventMismatch   = errors.New("ticket is not for this event")
	ErrAlreadyRedeemed = errors.New("ticket already redeemed")
	ErrTicketRefunded  = errors.New("ticket has been refunded")
	ErrEventNotFound   = errors.New("event not found")
)

// AlreadyRedeemedError carries the time of the first, successful check-in.
type AlreadyRedeemedError struct {
	TicketID    uuid.UUID
	CheckedInAt time.Time
}

func (e *AlreadyRedeemedError) Error() string {
	return fmt.Sprintf("ticket already checked in at %s", e.CheckedInAt.Format(time.RFC3339))
}

func (e *AlreadyRedeemedError) Unwrap() error { return ErrAlreadyRedeemed }
