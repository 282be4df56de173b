package purchase

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
)

var (
	ErrInvalidCart       = errors.New("invalid cart")
	ErrEventUnavailable  = errors.New("event unavailable")
	ErrUnknownTicketType = errors.New("unknown ticket type")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrRateLimited       = errors.New("too many purchase attempts")
)

type InvalidCartError struct {
	Reason string
	Fields *domain.ValidationError
}

func (e *InvalidCartError) Error() string {
	if e.Fields.HasErrors() {
		return e.Fields.Error()
	}
	return e.Reason
}

func (e *InvalidCartError) Unwrap() error { return ErrInvalidCart }

type EventUnavailableError struct {
	EventID uuid.UUID
}

func (e *EventUnavailableError) Error() string {
	return fmt.Sprintf("event %s is not available for purchase", e.EventID)
}

func (e *EventUnavailableError) Unwrap() error { return ErrEventUnavailable }

type UnknownTicketTypeError struct {
	EventID    uuid.UUID
	TicketType string
}

func (e *UnknownTicketTypeError) Error() string {
	return fmt.Sprintf("ticket type %q not found for event %s", e.TicketType, e.EventID)
}

func (e *UnknownTicketTypeError) Unwrap() error { return ErrUnknownTicketType }

type InvalidQuantityError struct {
	EventID    uuid.UUID
	TicketType string
	Quantity   int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for ticket type %q", e.Quantity, e.TicketType)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// CapacityExceededError reports how many tickets the event can still sell.
type CapacityExceededError struct {
	EventID   uuid.UUID
	EventName string
	Requested int
	Remaining int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("remaining: %d", e.Remaining)
}

func (e *CapacityExceededError) Unwrap() error { return ErrCapacityExceeded }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many purchase attempts, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
