// Package memory is an in-process repository.Store. A transaction holds the
// store lock for its whole duration and works on a snapshot that replaces the
// live state only on commit, so transactions are serializable and a failed
// transaction leaves nothing behind.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

type state struct {
	events  map[uuid.UUID]domain.Event
	tickets map[uuid.UUID]domain.Ticket
	users   map[uuid.UUID]domain.User
}

func newState() *state {
	return &state{
		events:  make(map[uuid.UUID]domain.Event),
		tickets: make(map[uuid.UUID]domain.Ticket),
		users:   make(map[uuid.UUID]domain.User),
	}
}

func (s *state) clone() *state {
	cp := &state{
		events:  make(map[uuid.UUID]domain.Event, len(s.events)),
		tickets: make(map[uuid.UUID]domain.Ticket, len(s.tickets)),
		users:   make(map[uuid.UUID]domain.User, len(s.users)),
	}
	for id, e := range s.events {
		cp.events[id] = copyEvent(e)
	}
	for id, t := range s.tickets {
		cp.tickets[id] = copyTicket(t)
	}
	for id, u := range s.users {
		cp.users[id] = u
	}
	return cp
}

type Store struct {
	mu    sync.Mutex
	state *state
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) Events() repository.EventRepository   { return &EventRepo{h: handle{s: s}} }
func (s *Store) Tickets() repository.TicketRepository { return &TicketRepo{h: handle{s: s}} }
func (s *Store) Users() repository.UserRepository     { return &UserRepo{h: handle{s: s}} }

func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, txRepos{h: handle{s: s, tx: snapshot}}); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = snapshot

	return nil
}

type txRepos struct {
	h handle
}

func (r txRepos) Events() repository.EventRepository   { return &EventRepo{h: r.h} }
func (r txRepos) Tickets() repository.TicketRepository { return &TicketRepo{h: r.h} }
func (r txRepos) Users() repository.UserRepository     { return &UserRepo{h: r.h} }

// handle is bound either to an open transaction snapshot or to the live
// state, in which case every call takes the store lock.
type handle struct {
	s  *Store
	tx *state
}

func (h handle) read(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return fn(h.s.state)
}

func (h handle) write(fn func(st *state) error) error {
	return h.read(fn)
}

func copyEvent(e domain.Event) domain.Event {
	if e.TicketTypes != nil {
		tts := make([]domain.TicketType, len(e.TicketTypes))
		copy(tts, e.TicketTypes)
		e.TicketTypes = tts
	}
	return e
}

func copyTicket(t domain.Ticket) domain.Ticket {
	if t.UserID != nil {
		id := *t.UserID
		t.UserID = &id
	}
	if t.CheckedInAt != nil {
		at := *t.CheckedInAt
		t.CheckedInAt = &at
	}
	if t.CheckedInBy != nil {
		by := *t.CheckedInBy
		t.CheckedInBy = &by
	}
	return t
}
