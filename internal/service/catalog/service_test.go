package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository/memory"
	redisrepo "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func input() EventInput {
	return EventInput{
		Name:        "Jazz Night",
		Description: "Quartet and friends",
		Date:        time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
		Time:        "19:30",
		Location:    "Main Hall",
		Promoter:    domain.Promoter{FirstName: "Grace", LastName: "Hopper"},
		TicketTypes: []domain.TicketType{
			{Label: "GA", Price: decimal.RequireFromString("20.00")},
			{Label: "VIP", Price: decimal.RequireFromString("50.00")},
		},
		TicketCount: 100,
	}
}

func newService(t *testing.T) (*memory.Store, *Service) {
	t.Helper()
	store := memory.NewStore()
	return store, New(store, nil, nil, Config{}, discard())
}

func sell(t *testing.T, store *memory.Store, eventID uuid.UUID, status domain.TicketStatus) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, store.Tickets().InsertBatch(ctx, []domain.Ticket{{
		ID: uuid.New(), EventID: eventID, TicketType: "GA",
		Price: decimal.NewFromInt(20), PurchasedAt: time.Now(), Status: status,
	}}))
	if status == domain.TicketActive {
		_, err := store.Events().AddTicketsSold(ctx, eventID, 1)
		require.NoError(t, err)
	}
}

func TestSubmit_StoresPending(t *testing.T) {
	store, svc := newService(t)
	ctx := context.Background()

	e, err := svc.Submit(ctx, input())
	require.NoError(t, err)
	assert.Equal(t, domain.EventPending, e.Status)
	assert.Zero(t, e.TicketsSold)
	assert.False(t, e.SubmittedAt.IsZero())

	got, err := store.Events().Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night", got.Name)
	assert.Len(t, got.TicketTypes, 2)

	_, err = svc.Get(ctx, e.ID)
	assert.ErrorIs(t, err, ErrEventNotFound, "pending events are not public")
}

func TestSubmit_Validation(t *testing.T) {
	_, svc := newService(t)

	tests := []struct {
		name   string
		mutate func(in *EventInput)
		field  string
	}{
		{"missing name", func(in *EventInput) { in.Name = "" }, "eventName"},
		{"missing date", func(in *EventInput) { in.Date = time.Time{} }, "eventDate"},
		{"negative count", func(in *EventInput) { in.TicketCount = -1 }, "ticketCount"},
		{"no ticket types", func(in *EventInput) { in.TicketTypes = nil }, "tickets"},
		{"empty label", func(in *EventInput) { in.TicketTypes[1].Label = "" }, "tickets[1].type"},
		{"duplicate label", func(in *EventInput) { in.TicketTypes[1].Label = "GA" }, "tickets[1].type"},
		{"negative price", func(in *EventInput) { in.TicketTypes[0].Price = decimal.NewFromInt(-1) }, "tickets[0].price"},
		{"missing promoter", func(in *EventInput) { in.Promoter.FirstName = "" }, "promoter.firstName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := input()
			tt.mutate(&in)

			_, err := svc.Submit(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidEvent)

			var ie *InvalidEventError
			require.True(t, errors.As(err, &ie))
			assert.Contains(t, ie.Fields.FieldErrors, tt.field)
		})
	}
}

func TestSetStatus_OnlyFromPending(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	e, err := svc.Submit(ctx, input())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetStatus(ctx, e.ID, domain.EventPending), ErrInvalidTransition)
	require.NoError(t, svc.SetStatus(ctx, e.ID, domain.EventApproved))
	assert.ErrorIs(t, svc.SetStatus(ctx, e.ID, domain.EventDenied), ErrInvalidTransition)
	assert.ErrorIs(t, svc.SetStatus(ctx, uuid.New(), domain.EventApproved), ErrEventNotFound)

	got, err := svc.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventApproved, got.Status)

	approved, err := svc.ListApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, e.ID, approved[0].ID)
}

func TestListAll_NewestFirst(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	first, err := svc.Submit(ctx, input())
	require.NoError(t, err)
	second, err := svc.Submit(ctx, input())
	require.NoError(t, err)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestUpdate_KeepsCountersAndRefusesShrinkBelowSold(t *testing.T) {
	store, svc := newService(t)
	ctx := context.Background()

	e, err := svc.Submit(ctx, input())
	require.NoError(t, err)
	require.NoError(t, svc.SetStatus(ctx, e.ID, domain.EventApproved))
	sell(t, store, e.ID, domain.TicketActive)
	sell(t, store, e.ID, domain.TicketActive)

	in := input()
	in.TicketCount = 1
	_, err = svc.Update(ctx, e.ID, in)
	assert.ErrorIs(t, err, ErrCapacityBelowSold)

	in.TicketCount = 2
	in.Name = "Jazz Night II"
	got, err := svc.Update(ctx, e.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Jazz Night II", got.Name)

	stored, err := store.Events().Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventApproved, stored.Status)
	assert.Equal(t, 2, stored.TicketsSold)
	assert.Equal(t, 2, stored.TicketCount)

	_, err = svc.Update(ctx, uuid.New(), input())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDelete(t *testing.T) {
	store, svc := newService(t)
	ctx := context.Background()

	e, err := svc.Submit(ctx, input())
	require.NoError(t, err)
	sell(t, store, e.ID, domain.TicketActive)
	sell(t, store, e.ID, domain.TicketRefunded)

	assert.ErrorIs(t, svc.Delete(ctx, e.ID), ErrEventHasActiveTickets)

	tickets, err := store.Tickets().ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	for _, tk := range tickets {
		if tk.Active() {
			require.NoError(t, store.Tickets().MarkRefunded(ctx, tk.ID))
		}
	}

	require.NoError(t, svc.Delete(ctx, e.ID))

	_, err = store.Events().Get(ctx, e.ID)
	assert.Error(t, err)
	left, err := store.Tickets().ListByEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, svc.Delete(ctx, e.ID), ErrEventNotFound)
}

func TestReconcile(t *testing.T) {
	store, svc := newService(t)
	ctx := context.Background()

	e, err := svc.Submit(ctx, input())
	require.NoError(t, err)
	sell(t, store, e.ID, domain.TicketActive)
	sell(t, store, e.ID, domain.TicketActive)
	require.NoError(t, store.Events().SetTicketsSold(ctx, e.ID, 7))

	r, err := svc.Reconcile(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, Reconciliation{EventID: e.ID, Before: 7, After: 2}, *r)

	stored, err := store.Events().Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TicketsSold)
}

func TestMutationsInvalidateCache(t *testing.T) {
	store := memory.NewStore()
	db, mock := redismock.NewClientMock()
	svc := New(store, redisrepo.New(db), nil, Config{}, discard())
	ctx := context.Background()

	e := &domain.Event{ID: uuid.New(), Name: "Jazz Night", Status: domain.EventPending}
	require.NoError(t, store.Events().Create(ctx, e))

	mock.ExpectDel(redisrepo.KeyEvent(e.ID), redisrepo.KeyApprovedEvents()).SetVal(1)

	require.NoError(t, svc.SetStatus(ctx, e.ID, domain.EventApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}
