package refund

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/service/purchase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buyOne(ctx context.Context, svc *purchase.Service, eventID uuid.UUID) (*purchase.Result, error) {
	return svc.Purchase(ctx, domain.Cart{
		Groups: []domain.PurchaseGroup{{
			EventID: eventID,
			Lines:   []domain.TicketLine{{TicketType: "GA", Quantity: 1}},
		}},
		Buyer: domain.Guest{Info: domain.Contact{
			FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555-0100",
		}},
	}, "")
}

func TestPurchaseAndRefundInterleave(t *testing.T) {
	store, svc := newService(t)
	buyers := purchase.New(store, nil, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	const capacity = 20
	e := seedEvent(t, store, capacity)

	var first []uuid.UUID
	for i := 0; i < capacity/2; i++ {
		res, err := buyOne(ctx, buyers, e.ID)
		require.NoError(t, err)
		first = append(first, res.Tickets[0].TicketID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		bought   int
		refunded int
		other    []error
	)
	record := func(err error, ok *int) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			*ok++
		case errors.Is(err, purchase.ErrCapacityExceeded):
		default:
			other = append(other, err)
		}
	}

	for i := 0; i < capacity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := buyOne(ctx, buyers, e.ID)
			record(err, &bought)
		}()
	}
	for _, id := range first {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.Refund(ctx, id.String(), staff)
			record(err, &refunded)
		}(id)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, len(first), refunded)
	assert.GreaterOrEqual(t, bought, capacity/2)

	sold, active := counters(t, store, e.ID)
	assert.Equal(t, active, sold)
	assert.Equal(t, bought, sold)
	assert.LessOrEqual(t, sold, capacity)

	// A bulk refund racing new buyers: whatever the order, the counter
	// matches the ledger afterwards.
	bought = 0
	var bulk *BulkResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		bulk, err = svc.RefundEvent(ctx, e.ID, staff)
		if err != nil {
			mu.Lock()
			other = append(other, err)
			mu.Unlock()
		}
	}()
	for i := 0; i < capacity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := buyOne(ctx, buyers, e.ID)
			record(err, &bought)
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	require.NotNil(t, bulk)
	assert.Positive(t, bulk.Refunded)

	sold, active = counters(t, store, e.ID)
	assert.Equal(t, active, sold)
	assert.LessOrEqual(t, sold, capacity)
	assert.LessOrEqual(t, sold, bought)
}
