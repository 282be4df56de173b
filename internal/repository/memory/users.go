package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

type UserRepo struct {
	h handle
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "memory.UserRepo.Get"

	var out domain.User
	err := r.h.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var out []domain.User
	_ = r.h.read(func(st *state) error {
		for _, u := range st.users {
			out = append(out, u)
		}
		return nil
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "memory.UserRepo.Create"

	return r.h.write(func(st *state) error {
		if _, ok := st.users[u.ID]; ok {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, u.Email) {
				return fmt.Errorf("%s:%w", op, repository.ErrConflict)
			}
		}
		st.users[u.ID] = *u
		return nil
	})
}

func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.User, error) {
	const op = "memory.UserRepo.SetRole"

	var out domain.User
	err := r.h.write(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		u.Role = role
		st.users[id] = u
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}
