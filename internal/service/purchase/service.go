package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/metrics"
	"github.com/kirinyoku/tixmarket/internal/notify"
	"github.com/kirinyoku/tixmarket/internal/repository"
	redisrepo "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/kirinyoku/tixmarket/internal/uow"
	"github.com/shopspring/decimal"
)

type Service struct {
	store    repository.Store
	cache    *redisrepo.Cache
	pubsub   *redisrepo.CatalogPubSub
	limiter  *redisrepo.SlidingWindowLimiter
	notifier *notify.Dispatcher
	uow      *uow.UoW
	log      *slog.Logger
	now      func() time.Time
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.CatalogPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	notifier *notify.Dispatcher,
	log *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		pubsub:   pubsub,
		limiter:  limiter,
		notifier: notifier,
		uow:      uow.NewUoW(store),
		log:      log,
		now:      time.Now,
	}
}

// Result lists the tickets created by one purchase, in cart order.
type Result struct {
	Tickets  []domain.IssuedTicket `json:"tickets"`
	Subtotal decimal.Decimal       `json:"subtotal"`
}

type group struct {
	eventID uuid.UUID
	lines   []domain.TicketLine
}

// plan is a validated group: the locked event and the resolved lines.
type plan struct {
	event     *domain.Event
	lines     []domain.TicketLine
	prices    []decimal.Decimal
	requested int
}

// Purchase buys every line of cart in one transaction: either all tickets
// are issued and every event counter moves, or nothing changes.
//
// Parameters:
//   - ctx: request-scoped context.
//   - cart: groups of ticket lines per event and the resolved purchaser.
//   - rlKey: rate limit bucket of the caller; empty disables limiting.
//
// Returns:
//   - *Result: the issued tickets.
//   - error: purchase.ErrInvalidCart, ErrEventUnavailable, ErrUnknownTicketType,
//     ErrInvalidQuantity, ErrCapacityExceeded or ErrRateLimited, each carried by
//     a typed detail error; anything else is a storage failure.
func (s *Service) Purchase(ctx context.Context, cart domain.Cart, rlKey string) (*Result, error) {
	const op = "service.purchase.Purchase"

	if err := s.allow(ctx, rlKey); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	groups, err := normalize(cart)
	if err != nil {
		metrics.TrackPurchase(outcome(err), 0)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var (
		res     *Result
		touched []uuid.UUID
	)

	err = s.uow.Do(ctx, func(
		ctx context.Context,
		tx repository.Repositories,
		after func(uow.AfterCommit),
	) error {
		plans, err := s.validate(ctx, tx, groups)
		if err != nil {
			return err
		}

		res, touched, err = s.write(ctx, tx, plans, cart.Buyer)
		if err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.afterPurchase(ctx, cart.Buyer, res, touched)
		})

		return nil
	})
	if err != nil {
		metrics.TrackPurchase(outcome(err), 0)
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) allow(ctx context.Context, rlKey string) error {
	if rlKey == "" {
		return nil
	}

	d, err := s.limiter.Allow(ctx, rlKey)
	if err != nil {
		// fail open
		s.log.WarnContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
		return nil
	}
	if !d.Allowed {
		return &RateLimitedError{RetryAfter: d.RetryAfter}
	}

	return nil
}

// normalize checks the cart shape and merges groups naming the same event,
// keeping the order in which events first appear.
func normalize(cart domain.Cart) ([]group, error) {
	if cart.Buyer == nil {
		return nil, &InvalidCartError{Reason: "customer information is required"}
	}

	if err := domain.Validate(cart.Buyer.Contact()); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, &InvalidCartError{Reason: "invalid customer information", Fields: verr}
		}
		return nil, err
	}

	if len(cart.Groups) == 0 {
		return nil, &InvalidCartError{Reason: "cart is empty"}
	}

	var (
		out   []group
		index = make(map[uuid.UUID]int, len(cart.Groups))
	)
	for _, g := range cart.Groups {
		if len(g.Lines) == 0 {
			return nil, &InvalidCartError{Reason: fmt.Sprintf("no tickets selected for event %s", g.EventID)}
		}
		if i, ok := index[g.EventID]; ok {
			out[i].lines = append(out[i].lines, g.Lines...)
			continue
		}
		index[g.EventID] = len(out)
		out = append(out, group{eventID: g.EventID, lines: append([]domain.TicketLine(nil), g.Lines...)})
	}

	return out, nil
}

// validate locks every event of the cart in id order, so two carts sharing
// events cannot deadlock, then checks groups in cart order.
func (s *Service) validate(ctx context.Context, tx repository.Repositories, groups []group) ([]plan, error) {
	ids := make([]uuid.UUID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.eventID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	events := make(map[uuid.UUID]*domain.Event, len(ids))
	for _, id := range ids {
		e, err := tx.Events().GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		events[id] = e
	}

	plans := make([]plan, 0, len(groups))
	for _, g := range groups {
		e, ok := events[g.eventID]
		if !ok || !e.Purchasable() {
			return nil, &EventUnavailableError{EventID: g.eventID}
		}

		p := plan{event: e, lines: g.lines, prices: make([]decimal.Decimal, len(g.lines))}
		for i, line := range g.lines {
			tt, ok := e.FindTicketType(line.TicketType)
			if !ok {
				return nil, &UnknownTicketTypeError{EventID: e.ID, TicketType: line.TicketType}
			}
			if line.Quantity < 1 {
				return nil, &InvalidQuantityError{EventID: e.ID, TicketType: line.TicketType, Quantity: line.Quantity}
			}
			p.prices[i] = tt.Price
		}

		// Each line is compared with what is left before it is added, so the
		// running total stays within capacity and cannot overflow.
		remaining := e.Remaining()
		for _, line := range g.lines {
			if line.Quantity > remaining-p.requested {
				return nil, &CapacityExceededError{
					EventID:   e.ID,
					EventName: e.Name,
					Requested: saturatingSum(g.lines),
					Remaining: remaining,
				}
			}
			p.requested += line.Quantity
		}

		plans = append(plans, p)
	}

	return plans, nil
}

func saturatingSum(lines []domain.TicketLine) int {
	total := 0
	for _, l := range lines {
		if l.Quantity > math.MaxInt-total {
			return math.MaxInt
		}
		total += l.Quantity
	}
	return total
}

func (s *Service) write(
	ctx context.Context,
	tx repository.Repositories,
	plans []plan,
	buyer domain.Purchaser,
) (*Result, []uuid.UUID, error) {
	var userID *uuid.UUID
	if id, ok := buyer.UserID(); ok {
		userID = &id
	}
	customer := buyer.Contact().Customer()
	now := s.now().UTC()

	res := &Result{Subtotal: decimal.Zero}
	var (
		tickets []domain.Ticket
		touched = make([]uuid.UUID, 0, len(plans))
	)

	for _, p := range plans {
		for i, line := range p.lines {
			for n := 0; n < line.Quantity; n++ {
				t := domain.Ticket{
					ID:          uuid.New(),
					EventID:     p.event.ID,
					TicketType:  line.TicketType,
					Price:       p.prices[i],
					PurchasedAt: now,
					Status:      domain.TicketActive,
					UserID:      userID,
					Customer:    customer,
				}
				tickets = append(tickets, t)
				res.Tickets = append(res.Tickets, domain.NewIssuedTicket(t, *p.event))
				res.Subtotal = res.Subtotal.Add(t.Price)
			}
		}
		touched = append(touched, p.event.ID)
	}

	if err := tx.Tickets().InsertBatch(ctx, tickets); err != nil {
		return nil, nil, err
	}

	for _, p := range plans {
		if _, err := tx.Events().AddTicketsSold(ctx, p.event.ID, p.requested); err != nil {
			if errors.Is(err, repository.ErrCapacity) {
				return nil, nil, &CapacityExceededError{
					EventID:   p.event.ID,
					EventName: p.event.Name,
					Requested: p.requested,
					Remaining: p.event.Remaining(),
				}
			}
			return nil, nil, err
		}
	}

	return res, touched, nil
}

func (s *Service) afterPurchase(ctx context.Context, buyer domain.Purchaser, res *Result, touched []uuid.UUID) {
	metrics.TrackPurchase("ok", len(res.Tickets))

	for _, id := range touched {
		_ = s.cache.InvalidateEvent(ctx, id)
		_ = s.pubsub.PublishEventChanged(ctx, id, "tickets_sold")
	}

	_, registered := buyer.UserID()
	c, err := notify.NewConfirmation(
		notify.KindPurchaseConfirmed,
		buyer.Contact().Customer(),
		!registered,
		res.Tickets,
		!registered,
	)
	if err != nil {
		s.log.WarnContext(ctx, "build confirmation", slog.String("error", err.Error()))
		return
	}
	s.notifier.Dispatch(c)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCart):
		return "invalid_cart"
	case errors.Is(err, ErrEventUnavailable):
		return "event_unavailable"
	case errors.Is(err, ErrUnknownTicketType):
		return "unknown_ticket_type"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	default:
		return "error"
	}
}
