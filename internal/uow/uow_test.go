package uow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirinyoku/tixmarket/internal/repository"
	"github.com/kirinyoku/tixmarket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_RunsHooksAfterCommit(t *testing.T) {
	u := NewUoW(memory.NewStore())

	var calls []string
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		after(func(context.Context) { calls = append(calls, "hook") })
		calls = append(calls, "body")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"body", "hook"}, calls)
}

func TestDo_SkipsHooksOnError(t *testing.T) {
	u := NewUoW(memory.NewStore())

	ran := false
	boom := errors.New("boom")
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		after(func(context.Context) { ran = true })
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestDo_RetriesRetryable(t *testing.T) {
	u := NewUoW(memory.NewStore())

	attempts := 0
	hooks := 0
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		attempts++
		after(func(context.Context) { hooks++ })
		if attempts < 3 {
			return fmt.Errorf("tx: %w", repository.ErrRetryable)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, hooks)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	u := NewUoW(memory.NewStore()).WithMaxAttempts(2)

	attempts := 0
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		attempts++
		return repository.ErrRetryable
	})
	assert.ErrorIs(t, err, repository.ErrRetryable)
	assert.Equal(t, 2, attempts)
}

func TestDo_DoesNotRetryOtherErrors(t *testing.T) {
	u := NewUoW(memory.NewStore())

	attempts := 0
	err := u.Do(context.Background(), func(ctx context.Context, tx repository.Repositories, after func(AfterCommit)) error {
		attempts++
		return repository.ErrCapacity
	})
	assert.ErrorIs(t, err, repository.ErrCapacity)
	assert.Equal(t, 1, attempts)
}
