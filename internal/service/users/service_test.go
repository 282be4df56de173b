package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *Service {
	return New(memory.NewStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	u, err := svc.Create(ctx, Input{FirstName: "Ada", LastName: "Lovelace", Email: " Ada@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)

	_, err = svc.Create(ctx, Input{FirstName: "A", LastName: "L", Email: "ADA@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Create(ctx, Input{FirstName: "A", LastName: "L", Email: "nope"})
	require.ErrorIs(t, err, ErrInvalidUser)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.FieldErrors, "email")

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSetRole(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	admin, err := svc.Create(ctx, Input{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)
	user, err := svc.Create(ctx, Input{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"})
	require.NoError(t, err)

	_, err = svc.SetRole(ctx, admin.ID, admin.ID, domain.RoleUser)
	assert.ErrorIs(t, err, ErrSelfRoleChange)

	_, err = svc.SetRole(ctx, admin.ID, user.ID, "owner")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.SetRole(ctx, admin.ID, uuid.New(), domain.RoleAdmin)
	assert.ErrorIs(t, err, ErrUserNotFound)

	promoted, err := svc.SetRole(ctx, admin.ID, user.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin())

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAuthorize(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	admin, err := svc.Create(ctx, Input{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: domain.RoleAdmin})
	require.NoError(t, err)
	user, err := svc.Create(ctx, Input{FirstName: "Alan", LastName: "Turing", Email: "alan@example.com"})
	require.NoError(t, err)

	got, err := svc.Authorize(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	_, err = svc.Authorize(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = svc.Authorize(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
