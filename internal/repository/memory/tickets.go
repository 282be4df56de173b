package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

type TicketRepo struct {
	h handle
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "memory.TicketRepo.Get"

	var out domain.Ticket
	err := r.h.read(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = copyTicket(t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return r.Get(ctx, id)
}

func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "memory.TicketRepo.InsertBatch"

	return r.h.write(func(st *state) error {
		for _, t := range tickets {
			if _, ok := st.tickets[t.ID]; ok {
				return fmt.Errorf("%s:%w", op, repository.ErrConflict)
			}
			if _, ok := st.events[t.EventID]; !ok {
				return fmt.Errorf("%s:%w", op, repository.ErrPrecondition)
			}
		}
		for _, t := range tickets {
			st.tickets[t.ID] = copyTicket(t)
		}
		return nil
	})
}

func (r *TicketRepo) MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time, by uuid.UUID) error {
	const op = "memory.TicketRepo.MarkCheckedIn"

	return r.h.write(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if t.IsCheckedIn {
			return fmt.Errorf("%s:%w", op, repository.ErrPrecondition)
		}
		t.IsCheckedIn = true
		t.CheckedInAt = &at
		t.CheckedInBy = &by
		st.tickets[id] = t
		return nil
	})
}

func (r *TicketRepo) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	const op = "memory.TicketRepo.MarkRefunded"

	return r.h.write(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		if t.Status != domain.TicketActive {
			return fmt.Errorf("%s:%w", op, repository.ErrPrecondition)
		}
		t.Status = domain.TicketRefunded
		st.tickets[id] = t
		return nil
	})
}

func (r *TicketRepo) RefundActiveByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error) {
	var out []domain.Ticket
	_ = r.h.write(func(st *state) error {
		for id, t := range st.tickets {
			if t.EventID != eventID || t.Status != domain.TicketActive {
				continue
			}
			t.Status = domain.TicketRefunded
			st.tickets[id] = t
			out = append(out, copyTicket(t))
		}
		return nil
	})

	sortByPurchase(out, false)

	return out, nil
}

func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error) {
	out := r.filter(func(t domain.Ticket) bool { return t.EventID == eventID })
	sortByPurchase(out, false)
	return out, nil
}

func (r *TicketRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	out := r.filter(func(t domain.Ticket) bool { return t.UserID != nil && *t.UserID == userID })
	sortByPurchase(out, true)
	return out, nil
}

func (r *TicketRepo) ListSales(ctx context.Context, f domain.SalesFilter) ([]domain.Sale, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []domain.Sale
	_ = r.h.read(func(st *state) error {
		for _, t := range st.tickets {
			e, ok := st.events[t.EventID]
			if !ok {
				continue
			}
			if f.EventID != nil && t.EventID != *f.EventID {
				continue
			}
			if !f.Since.IsZero() && e.Date.Before(f.Since) {
				continue
			}
			if search != "" && !matchesSale(t, search) {
				continue
			}
			out = append(out, domain.Sale{Ticket: copyTicket(t), EventName: e.Name})
		}
		return nil
	})

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PurchasedAt, out[j].PurchasedAt
		if a.Equal(b) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return a.After(b)
	})

	return out, nil
}

func matchesSale(t domain.Ticket, search string) bool {
	if strings.EqualFold(t.ID.String(), search) {
		return true
	}
	for _, s := range []string{t.Customer.FirstName, t.Customer.LastName, t.Customer.Email} {
		if strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

func (r *TicketRepo) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	return len(r.filter(func(t domain.Ticket) bool {
		return t.EventID == eventID && t.Status == domain.TicketActive
	})), nil
}

func (r *TicketRepo) CountCheckedIn(ctx context.Context, eventID uuid.UUID) (int, error) {
	return len(r.filter(func(t domain.Ticket) bool {
		return t.EventID == eventID && t.IsCheckedIn
	})), nil
}

func (r *TicketRepo) DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	var n int
	_ = r.h.write(func(st *state) error {
		for id, t := range st.tickets {
			if t.EventID == eventID {
				delete(st.tickets, id)
				n++
			}
		}
		return nil
	})
	return n, nil
}

func (r *TicketRepo) filter(keep func(domain.Ticket) bool) []domain.Ticket {
	var out []domain.Ticket
	_ = r.h.read(func(st *state) error {
		for _, t := range st.tickets {
			if keep(t) {
				out = append(out, copyTicket(t))
			}
		}
		return nil
	})
	return out
}

func sortByPurchase(ts []domain.Ticket, newestFirst bool) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i].PurchasedAt, ts[j].PurchasedAt
		if a.Equal(b) {
			return ts[i].ID.String() < ts[j].ID.String()
		}
		if newestFirst {
			return a.After(b)
		}
		return a.Before(b)
	})
}
