package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

type EventRepo struct {
	h handle
}

func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "memory.EventRepo.Get"

	var out domain.Event
	err := r.h.read(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = copyEvent(e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// GetForUpdate is Get: a transaction already owns the store lock.
func (r *EventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return r.Get(ctx, id)
}

func (r *EventRepo) ListByStatus(ctx context.Context, status domain.EventStatus) ([]domain.Event, error) {
	var out []domain.Event
	_ = r.h.read(func(st *state) error {
		for _, e := range st.events {
			if e.Status == status {
				out = append(out, copyEvent(e))
			}
		}
		return nil
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Date.Before(out[j].Date)
	})

	return out, nil
}

func (r *EventRepo) ListAll(ctx context.Context) ([]domain.Event, error) {
	var out []domain.Event
	_ = r.h.read(func(st *state) error {
		for _, e := range st.events {
			out = append(out, copyEvent(e))
		}
		return nil
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})

	return out, nil
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	const op = "memory.EventRepo.Create"

	return r.h.write(func(st *state) error {
		if _, ok := st.events[e.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		st.events[e.ID] = copyEvent(*e)
		return nil
	})
}

func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	const op = "memory.EventRepo.Update"

	return r.h.write(func(st *state) error {
		cur, ok := st.events[e.ID]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		next := copyEvent(*e)
		next.Status = cur.Status
		next.TicketsSold = cur.TicketsSold
		next.SubmittedAt = cur.SubmittedAt
		st.events[e.ID] = next
		return nil
	})
}

func (r *EventRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to domain.EventStatus) error {
	const op = "memory.EventRepo.SetStatus"

	return r.h.write(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if e.Status != from {
			return fmt.Errorf("%s:%w", op, repository.ErrPrecondition)
		}
		e.Status = to
		st.events[id] = e
		return nil
	})
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "memory.EventRepo.Delete"

	return r.h.write(func(st *state) error {
		if _, ok := st.events[id]; !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		for _, t := range st.tickets {
			if t.EventID == id {
				// tickets reference events
				return fmt.Errorf("%s:%w", op, repository.ErrPrecondition)
			}
		}
		delete(st.events, id)
		return nil
	})
}

func (r *EventRepo) AddTicketsSold(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	const op = "memory.EventRepo.AddTicketsSold"

	var sold int
	err := r.h.write(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		n := e.TicketsSold + delta
		if n < 0 || n > e.TicketCount {
			return fmt.Errorf("%s:%w", op, repository.ErrCapacity)
		}
		e.TicketsSold = n
		st.events[id] = e
		sold = n
		return nil
	})

	return sold, err
}

func (r *EventRepo) SetTicketsSold(ctx context.Context, id uuid.UUID, n int) error {
	const op = "memory.EventRepo.SetTicketsSold"

	return r.h.write(func(st *state) error {
		e, ok := st.events[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if n < 0 {
			return fmt.Errorf("%s:%w", op, repository.ErrCapacity)
		}
		e.TicketsSold = n
		st.events[id] = e
		return nil
	})
}
