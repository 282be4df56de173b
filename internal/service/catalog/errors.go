package catalog

import (
	"errors"

	"github.com/kirinyoku/tixmarket/internal/domain"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrInvalidTransition     = errors.New("event status can only change from pending")
	ErrCapacityBelowSold     = errors.New("ticket count below tickets already sold")
	ErrEventHasActiveTickets = errors.New("event still has active tickets")
	ErrInvalidEvent          = errors.New("invalid event")
)

// InvalidEventError lists the submission fields that failed validation.
type InvalidEventError struct {
	Fields *domain.ValidationError
}

func (e *InvalidEventError) Error() string {
	return "invalid event: " + e.Fields.Error()
}

func (e *InvalidEventError) Unwrap() error { return ErrInvalidEvent }
