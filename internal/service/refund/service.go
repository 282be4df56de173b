// Package refund reverses sales: one ticket at a time, or every active
// ticket of an event at once. Money movement is simulated and logged.
package refund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/metrics"
	"github.com/kirinyoku/tixmarket/internal/qr"
	"github.com/kirinyoku/tixmarket/internal/repository"
	redisrepo "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/kirinyoku/tixmarket/internal/uow"
	"github.com/shopspring/decimal"
)

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.CatalogPubSub
	fees   domain.FeeSchedule
	uow    *uow.UoW
	log    *slog.Logger
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.CatalogPubSub,
	fees domain.FeeSchedule,
	log *slog.Logger,
) *Service {
	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		fees:   fees,
		uow:    uow.NewUoW(store),
		log:    log,
	}
}

type Result struct {
	Ticket domain.Ticket   `json:"ticket"`
	Amount decimal.Decimal `json:"refundAmount"`
}

type BulkResult struct {
	EventID  uuid.UUID       `json:"eventId"`
	Refunded int             `json:"refundedCount"`
	Total    decimal.Decimal `json:"totalAmount"`
}

// Refund refunds one active ticket and releases its seat.
//
// Parameters:
//   - ctx: request-scoped context.
//   - rawTicketID: the ticket id, typed or scanned off its QR code.
//   - staffID: the acting staff member, recorded in the refund log.
//
// Returns:
//   - *Result: the refunded ticket and the amount returned to the customer.
//   - error: refund.ErrMalformedID, ErrTicketNotFound or ErrAlreadyRefunded.
func (s *Service) Refund(ctx context.Context, rawTicketID string, staffID uuid.UUID) (*Result, error) {
	const op = "service.refund.Refund"

	ticketID, err := qr.ParsePayload(rawTicketID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ErrMalformedID)
	}

	var res *Result

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		// The event row is locked before the ticket row, the same order
		// bulk refunds and purchases take.
		t, err := tx.Tickets().Get(ctx, ticketID)
		if err != nil {
			return ticketErr(err)
		}

		if _, err := tx.Events().GetForUpdate(ctx, t.EventID); err != nil {
			return err
		}

		t, err = tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return ticketErr(err)
		}
		if !t.Active() {
			return ErrAlreadyRefunded
		}

		if err := tx.Tickets().MarkRefunded(ctx, ticketID); err != nil {
			if errors.Is(err, repository.ErrPrecondition) {
				return ErrAlreadyRefunded
			}
			return err
		}

		if err := s.releaseSeat(ctx, tx, t.EventID); err != nil {
			return err
		}

		t.Status = domain.TicketRefunded
		res = &Result{Ticket: *t, Amount: s.fees.RefundAmount(t.Price)}

		after(func(ctx context.Context) {
			metrics.TrackRefund("single", 1)
			s.catalogChanged(ctx, t.EventID)
			s.logRefund(ctx, *t, res.Amount, staffID)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// releaseSeat decrements tickets_sold. A counter that already reads zero
// has drifted from the ledger and is recomputed instead.
func (s *Service) releaseSeat(ctx context.Context, tx repository.Repositories, eventID uuid.UUID) error {
	_, err := tx.Events().AddTicketsSold(ctx, eventID, -1)
	if !errors.Is(err, repository.ErrCapacity) {
		return err
	}

	active, err := tx.Tickets().CountActive(ctx, eventID)
	if err != nil {
		return err
	}

	s.log.WarnContext(ctx, "tickets_sold drifted from ledger",
		slog.String("event_id", eventID.String()),
		slog.Int("active", active),
	)

	return tx.Events().SetTicketsSold(ctx, eventID, active)
}

// RefundEvent refunds every active ticket of an event and zeroes its sold
// counter. Tickets already refunded are left alone.
func (s *Service) RefundEvent(ctx context.Context, eventID, staffID uuid.UUID) (*BulkResult, error) {
	const op = "service.refund.RefundEvent"

	var res *BulkResult

	err := s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		if _, err := tx.Events().GetForUpdate(ctx, eventID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		refunded, err := tx.Tickets().RefundActiveByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if len(refunded) == 0 {
			return ErrNothingToRefund
		}

		if err := tx.Events().SetTicketsSold(ctx, eventID, 0); err != nil {
			return err
		}

		res = &BulkResult{EventID: eventID, Refunded: len(refunded), Total: decimal.Zero}
		amounts := make([]decimal.Decimal, len(refunded))
		for i, t := range refunded {
			amounts[i] = s.fees.RefundAmount(t.Price)
			res.Total = res.Total.Add(amounts[i])
		}

		after(func(ctx context.Context) {
			metrics.TrackRefund("bulk", len(refunded))
			s.catalogChanged(ctx, eventID)
			for i, t := range refunded {
				s.logRefund(ctx, t, amounts[i], staffID)
			}
			s.log.InfoContext(ctx, "event refunded",
				slog.String("event_id", eventID.String()),
				slog.Int("count", res.Refunded),
				slog.String("total", res.Total.StringFixed(2)),
			)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) catalogChanged(ctx context.Context, eventID uuid.UUID) {
	_ = s.cache.InvalidateEvent(ctx, eventID)
	_ = s.pubsub.PublishEventChanged(ctx, eventID, "tickets_refunded")
}

func (s *Service) logRefund(ctx context.Context, t domain.Ticket, amount decimal.Decimal, staffID uuid.UUID) {
	s.log.InfoContext(ctx, "refund issued",
		slog.String("ticket_id", t.ID.String()),
		slog.String("event_id", t.EventID.String()),
		slog.String("customer_email", t.Customer.Email),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("staff_id", staffID.String()),
	)
}

func ticketErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTicketNotFound
	}
	return err
}
