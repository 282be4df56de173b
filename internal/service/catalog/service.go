package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
	redisrepo "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/kirinyoku/tixmarket/internal/uow"
)

type Config struct {
	EventTTL time.Duration
	ListTTL  time.Duration
}

type Service struct {
	store  repository.Store
	cache  *redisrepo.Cache
	pubsub *redisrepo.CatalogPubSub
	uow    *uow.UoW
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
}

func New(
	store repository.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.CatalogPubSub,
	cfg Config,
	log *slog.Logger,
) *Service {
	if cfg.EventTTL <= 0 {
		cfg.EventTTL = 60 * time.Second
	}

	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 15 * time.Second
	}

	return &Service{
		store:  store,
		cache:  cache,
		pubsub: pubsub,
		uow:    uow.NewUoW(store),
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// EventInput is a promoter submission or an admin edit.
type EventInput struct {
	Name        string              `json:"eventName" validate:"required"`
	Description string              `json:"eventDescription" validate:"required"`
	Date        time.Time           `json:"eventDate" validate:"required"`
	Time        string              `json:"eventTime" validate:"required"`
	Location    string              `json:"eventLocation" validate:"required"`
	Promoter    domain.Promoter     `json:"promoter"`
	TicketTypes []domain.TicketType `json:"tickets" validate:"required,min=1,dive"`
	TicketCount int                 `json:"ticketCount" validate:"gte=0"`
}

func (in EventInput) validate() error {
	fields := &domain.ValidationError{}

	if err := domain.Validate(in); err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		fields = verr
	}

	seen := make(map[string]bool, len(in.TicketTypes))
	for i, tt := range in.TicketTypes {
		if tt.Price.IsNegative() {
			fields.Add(fmt.Sprintf("tickets[%d].price", i), "gte")
		}

		label := strings.TrimSpace(tt.Label)
		if label == "" {
			continue
		}
		if seen[label] {
			fields.Add(fmt.Sprintf("tickets[%d].type", i), "unique")
		}
		seen[label] = true
	}

	if fields.HasErrors() {
		return &InvalidEventError{Fields: fields}
	}

	return nil
}

func (in EventInput) apply(e *domain.Event) {
	e.Name = strings.TrimSpace(in.Name)
	e.Description = in.Description
	e.Date = in.Date
	e.Time = in.Time
	e.Location = in.Location
	e.Promoter = in.Promoter
	e.TicketCount = in.TicketCount

	e.TicketTypes = make([]domain.TicketType, len(in.TicketTypes))
	for i, tt := range in.TicketTypes {
		tt.Label = strings.TrimSpace(tt.Label)
		e.TicketTypes[i] = tt
	}
}

// Submit stores a new event awaiting review.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: the promoter's submission.
//
// Returns:
//   - *domain.Event: the stored event, status pending.
//   - error: *catalog.InvalidEventError when in does not validate.
func (s *Service) Submit(ctx context.Context, in EventInput) (*domain.Event, error) {
	const op = "service.catalog.Submit"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	e := &domain.Event{
		ID:          uuid.New(),
		Status:      domain.EventPending,
		SubmittedAt: s.now().UTC(),
	}
	in.apply(e)

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		if err := tx.Events().Create(ctx, e); err != nil {
			return err
		}
		after(func(ctx context.Context) { s.changed(ctx, e.ID, "event_submitted") })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "event submitted",
		slog.String("event_id", e.ID.String()),
		slog.String("name", e.Name),
	)

	return e, nil
}

// ListApproved returns the public catalog, soonest event first.
func (s *Service) ListApproved(ctx context.Context) ([]domain.Event, error) {
	const op = "service.catalog.ListApproved"

	events, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyApprovedEvents(),
		s.cfg.ListTTL,
		func(ctx context.Context) ([]domain.Event, error) {
			events, err := s.store.Events().ListByStatus(ctx, domain.EventApproved)
			if err != nil {
				return nil, err
			}
			if events == nil {
				events = []domain.Event{}
			}
			return events, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return events, nil
}

// Get returns an approved event. Pending and denied events are reported as
// not found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "service.catalog.Get"

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyEvent(id),
		s.cfg.EventTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Events().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}
				return domain.Event{}, err
			}
			if !e.Purchasable() {
				return domain.Event{}, ErrEventNotFound
			}
			return *e, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &event, nil
}

// ListAll returns every submission, newest first.
func (s *Service) ListAll(ctx context.Context) ([]domain.Event, error) {
	const op = "service.catalog.ListAll"

	events, err := s.store.Events().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return events, nil
}

// SetStatus approves or denies a pending event.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: the event to review.
//   - to: domain.EventApproved or domain.EventDenied.
//
// Returns:
//   - error: catalog.ErrEventNotFound, or catalog.ErrInvalidTransition when
//     the event was already reviewed or to is not a review outcome.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, to domain.EventStatus) error {
	const op = "service.catalog.SetStatus"

	if to != domain.EventApproved && to != domain.EventDenied {
		return fmt.Errorf("%s:%w", op, ErrInvalidTransition)
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		err := tx.Events().SetStatus(ctx, id, domain.EventPending, to)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrEventNotFound
		case errors.Is(err, repository.ErrPrecondition):
			return ErrInvalidTransition
		case err != nil:
			return err
		}

		after(func(ctx context.Context) { s.changed(ctx, id, "event_"+string(to)) })
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Update rewrites an event's details, ticket types and capacity. Status and
// the sold counter are kept.
//
// Returns:
//   - *domain.Event: the event after the edit.
//   - error: catalog.ErrEventNotFound, *InvalidEventError or
//     ErrCapacityBelowSold.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in EventInput) (*domain.Event, error) {
	const op = "service.catalog.Update"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var out *domain.Event

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		e, err := tx.Events().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if in.TicketCount < e.TicketsSold {
			return ErrCapacityBelowSold
		}

		in.apply(e)
		if err := tx.Events().Update(ctx, e); err != nil {
			if errors.Is(err, repository.ErrCapacity) {
				return ErrCapacityBelowSold
			}
			return err
		}
		out = e

		after(func(ctx context.Context) { s.changed(ctx, id, "event_updated") })
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Delete removes an event that has no active tickets, together with its
// refunded ledger rows.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "service.catalog.Delete"

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		if _, err := tx.Events().GetForUpdate(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		active, err := tx.Tickets().CountActive(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return ErrEventHasActiveTickets
		}

		if _, err := tx.Tickets().DeleteByEvent(ctx, id); err != nil {
			return err
		}
		if err := tx.Events().Delete(ctx, id); err != nil {
			return err
		}

		after(func(ctx context.Context) { s.changed(ctx, id, "event_deleted") })
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "event deleted", slog.String("event_id", id.String()))

	return nil
}

type Reconciliation struct {
	EventID uuid.UUID `json:"eventId"`
	Before  int       `json:"before"`
	After   int       `json:"after"`
}

// Reconcile sets tickets_sold to the number of active ledger rows.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (*Reconciliation, error) {
	const op = "service.catalog.Reconcile"

	var out *Reconciliation

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Repositories, after func(uow.AfterCommit)) error {
		e, err := tx.Events().GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		active, err := tx.Tickets().CountActive(ctx, id)
		if err != nil {
			return err
		}

		out = &Reconciliation{EventID: id, Before: e.TicketsSold, After: active}
		if active == e.TicketsSold {
			return nil
		}

		if err := tx.Events().SetTicketsSold(ctx, id, active); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.log.WarnContext(ctx, "tickets_sold reconciled",
				slog.String("event_id", id.String()),
				slog.Int("before", out.Before),
				slog.Int("after", out.After),
			)
			s.changed(ctx, id, "tickets_reconciled")
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// OnCatalogChange drops cached reads for an event changed by another
// instance.
func (s *Service) OnCatalogChange(ctx context.Context, change redisrepo.CatalogChange) {
	if err := s.cache.InvalidateEvent(ctx, change.EventID); err != nil {
		s.log.WarnContext(ctx, "invalidate cached event",
			slog.String("event_id", change.EventID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) changed(ctx context.Context, id uuid.UUID, kind string) {
	_ = s.cache.InvalidateEvent(ctx, id)
	_ = s.pubsub.PublishEventChanged(ctx, id, kind)
}
