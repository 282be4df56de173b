package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/metrics"
	"github.com/kirinyoku/tixmarket/internal/qr"
	"github.com/kirinyoku/tixmarket/internal/repository"
	"github.com/kirinyoku/tixmarket/internal/uow"
)

type Service struct {
	store repository.Store
	uow   *uow.UoW
	log   *slog.Logger
	now   func() time.Time
}

func New(store repository.Store, log *slog.Logger) *Service {
	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
		log:   log,
		now:   time.Now,
	}
}

// CheckIn redeems a scanned ticket at the entrance of eventID.
//
// Parameters:
//   - ctx: request-scoped context.
//   - rawTicketID: what the scanner read off the QR code.
//   - rawEventID: the event the staff member is admitting to.
//   - staffID: the acting staff member.
//
// Returns:
//   - *domain.Ticket: the redeemed ticket.
//   - error: checkin.ErrMalformedID, ErrTicketNotFound, ErrEventMismatch,
//     ErrTicketRefunded or *AlreadyRedeemedError.
func (s *Service) CheckIn(
	ctx context.Context,
	rawTicketID, rawEventID string,
	staffID uuid.UUID,
) (*domain.Ticket, error) {
	const op = "service.checkin.CheckIn"

	ticketID, err := qr.ParsePayload(rawTicketID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrMalformedID)
	}

	eventID, err := uuid.Parse(strings.TrimSpace(rawEventID))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrMalformedID)
	}

	var out *domain.Ticket

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		t, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTicketNotFound
		}
		if err != nil {
			return err
		}

		if err := admissible(t, eventID); err != nil {
			return err
		}

		at := s.now().UTC()
		if err := tx.Tickets().MarkCheckedIn(ctx, ticketID, at, staffID); err != nil {
			if errors.Is(err, repository.ErrPrecondition) {
				// lost a race the row lock did not cover
				return s.redeemedBy(ctx, tx, ticketID)
			}
			return err
		}

		t.IsCheckedIn = true
		t.CheckedInAt = &at
		t.CheckedInBy = &staffID
		out = t

		return nil
	})

	metrics.TrackCheckIn(checkInOutcome(err))

	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "ticket checked in",
		slog.String("ticket_id", ticketID.String()),
		slog.String("event_id", eventID.String()),
		slog.String("staff_id", staffID.String()),
	)

	return out, nil
}

func admissible(t *domain.Ticket, eventID uuid.UUID) error {
	if t.EventID != eventID {
		return ErrEventMismatch
	}

	if t.IsCheckedIn {
		e := &AlreadyRedeemedError{TicketID: t.ID}
		if t.CheckedInAt != nil {
			e.CheckedInAt = *t.CheckedInAt
		}
		return e
	}

	if !t.Active() {
		return ErrTicketRefunded
	}

	return nil
}

func (s *Service) redeemedBy(ctx context.Context, tx repository.Repositories, id uuid.UUID) error {
	t, err := tx.Tickets().Get(ctx, id)
	if err != nil {
		return err
	}
	e := &AlreadyRedeemedError{TicketID: id}
	if t.CheckedInAt != nil {
		e.CheckedInAt = *t.CheckedInAt
	}
	return e
}

// Stats reports admissions against sales for an event.
func (s *Service) Stats(ctx context.Context, eventID uuid.UUID) (*domain.CheckInStats, error) {
	const op = "service.checkin.Stats"

	e, err := s.store.Events().Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	checkedIn, err := s.store.Tickets().CountCheckedIn(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &domain.CheckInStats{
		EventName:      e.Name,
		TotalTickets:   e.TicketsSold,
		CheckedInCount: checkedIn,
	}, nil
}

// ManageableEvents lists the events staff can admit to, soonest first.
func (s *Service) ManageableEvents(ctx context.Context) ([]domain.Event, error) {
	const op = "service.checkin.ManageableEvents"

	events, err := s.store.Events().ListByStatus(ctx, domain.EventApproved)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return events, nil
}

func checkInOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTicketNotFound):
		return "not_found"
	case errors.Is(err, ErrEventMismatch):
		return "event_mismatch"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrTicketRefunded):
		return "refunded"
	default:
		return "error"
	}
}
