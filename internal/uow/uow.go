package uow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/tixmarket/internal/repository"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

const (
	defaultMaxAttempts = 5
	baseBackoff        = 5 * time.Millisecond
)

// UoW represents a unit of work.
type UoW struct {
	store       repository.Store
	maxAttempts int
}

func NewUoW(store repository.Store) *UoW {
	return &UoW{store: store, maxAttempts: defaultMaxAttempts}
}

// WithMaxAttempts returns a copy of u that replays a retryable transaction at
// most n times in total.
func (u *UoW) WithMaxAttempts(n int) *UoW {
	cp := *u
	if n < 1 {
		n = 1
	}
	cp.maxAttempts = n
	return &cp
}

// Do runs fn inside a transaction. Serialization failures and deadlocks are
// replayed from the start with a short backoff. Hooks registered through after
// run once, only after the attempt that commits.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error,
) error {
	const op = "uow.UoW.Do"

	var err error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		var hooks []AfterCommit

		err = u.store.RunTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
			return fn(ctx, tx, func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil {
			for _, h := range hooks {
				h(ctx)
			}
			return nil
		}

		if !errors.Is(err, repository.ErrRetryable) || attempt == u.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(baseBackoff * time.Duration(1<<(attempt-1))):
		}
	}

	return err
}
