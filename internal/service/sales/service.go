package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/notify"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketRefunded = errors.New("ticket has been refunded")
)

// window keeps the sales table to events that have not long passed.
const window = 24 * time.Hour

type Service struct {
	store    repository.Store
	notifier *notify.Dispatcher
	log      *slog.Logger
	now      func() time.Time
}

func New(store repository.Store, notifier *notify.Dispatcher, log *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// List returns ledger rows for the admin sales table, newest purchase
// first. Events dated more than a day ago are left out.
//
// Parameters:
//   - ctx: request-scoped context.
//   - search: ticket id, or part of the customer's name or email.
//   - eventID: restricts rows to one event when not nil.
func (s *Service) List(ctx context.Context, search string, eventID *uuid.UUID) ([]domain.Sale, error) {
	const op = "service.sales.List"

	sales, err := s.store.Tickets().ListSales(ctx, domain.SalesFilter{
		Search:  strings.TrimSpace(search),
		EventID: eventID,
		Since:   s.now().Add(-window),
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return sales, nil
}

// OwnedTicket is a ticket in a customer's own list, with the event it admits
// to.
type OwnedTicket struct {
	domain.Ticket
	EventName     string    `json:"eventName"`
	EventDate     time.Time `json:"eventDate"`
	EventTime     string    `json:"eventTime"`
	EventLocation string    `json:"eventLocation"`
}

// UserTickets lists the tickets bought by a registered user, newest first.
func (s *Service) UserTickets(ctx context.Context, userID uuid.UUID) ([]OwnedTicket, error) {
	const op = "service.sales.UserTickets"

	tickets, err := s.store.Tickets().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	events := make(map[uuid.UUID]*domain.Event)
	out := make([]OwnedTicket, 0, len(tickets))

	for _, t := range tickets {
		e, ok := events[t.EventID]
		if !ok {
			e, err = s.store.Events().Get(ctx, t.EventID)
			if err != nil {
				return nil, fmt.Errorf("%s:%w", op, err)
			}
			events[t.EventID] = e
		}

		out = append(out, OwnedTicket{
			Ticket:        t,
			EventName:     e.Name,
			EventDate:     e.Date,
			EventTime:     e.Time,
			EventLocation: e.Location,
		})
	}

	return out, nil
}

// Resend queues the confirmation of one ticket again, QR code included, to
// the email stored on the ticket.
//
// Returns:
//   - string: the recipient address.
//   - error: sales.ErrTicketNotFound or ErrTicketRefunded.
func (s *Service) Resend(ctx context.Context, ticketID uuid.UUID) (string, error) {
	const op = "service.sales.Resend"

	t, err := s.store.Tickets().Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%s:%w", op, ErrTicketNotFound)
		}
		return "", fmt.Errorf("%s:%w", op, err)
	}

	if !t.Active() {
		return "", fmt.Errorf("%s:%w", op, ErrTicketRefunded)
	}

	e, err := s.store.Events().Get(ctx, t.EventID)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	c, err := notify.NewConfirmation(
		notify.KindTicketResent,
		t.Customer,
		t.UserID == nil,
		[]domain.IssuedTicket{domain.NewIssuedTicket(*t, *e)},
		true,
	)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	s.notifier.Dispatch(c)

	s.log.InfoContext(ctx, "ticket resent",
		slog.String("ticket_id", t.ID.String()),
		slog.String("recipient", c.Recipient),
	)

	return c.Recipient, nil
}
