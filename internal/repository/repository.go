package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
)

type EventRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	// GetForUpdate reads the event and locks it until the surrounding
	// transaction ends. Outside a transaction it behaves like Get.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	ListByStatus(ctx context.Context, status domain.EventStatus) ([]domain.Event, error)
	ListAll(ctx context.Context) ([]domain.Event, error)
	Create(ctx context.Context, e *domain.Event) error
	// Update rewrites metadata, ticket types and ticket_count. It never
	// touches status or tickets_sold.
	Update(ctx context.Context, e *domain.Event) error
	// SetStatus moves the event from one status to another and returns
	// ErrPrecondition when the current status is not from.
	SetStatus(ctx context.Context, id uuid.UUID, from, to domain.EventStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	// AddTicketsSold applies delta to tickets_sold and returns the new value.
	// It fails with ErrCapacity if the result leaves [0, ticket_count].
	AddTicketsSold(ctx context.Context, id uuid.UUID, delta int) (int, error)
	SetTicketsSold(ctx context.Context, id uuid.UUID, n int) error
}

type TicketRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	InsertBatch(ctx context.Context, tickets []domain.Ticket) error
	// MarkCheckedIn flips is_checked_in only if it is still false and
	// returns ErrPrecondition otherwise.
	MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time, by uuid.UUID) error
	// MarkRefunded flips an active ticket to refunded and returns
	// ErrPrecondition otherwise.
	MarkRefunded(ctx context.Context, id uuid.UUID) error
	// RefundActiveByEvent refunds every active ticket of the event and
	// returns the rows it changed.
	RefundActiveByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error)
	ListSales(ctx context.Context, f domain.SalesFilter) ([]domain.Sale, error)
	CountActive(ctx context.Context, eventID uuid.UUID) (int, error)
	CountCheckedIn(ctx context.Context, eventID uuid.UUID) (int, error)
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int, error)
}

type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	SetRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.User, error)
}

// Repositories bundles the repositories bound to one handle: either the
// shared pool or an open transaction.
type Repositories interface {
	Events() EventRepository
	Tickets() TicketRepository
	Users() UserRepository
}

// Store is a Repositories backed by durable storage that can also run a
// serializable transaction.
type Store interface {
	Repositories
	// RunTx runs fn inside one transaction. fn's error aborts and rolls
	// back every write made through tx.
	RunTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
}
