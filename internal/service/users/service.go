package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrSelfRoleChange = errors.New("cannot change your own role")
	ErrInvalidRole    = errors.New("invalid role")
	ErrNotAdmin       = errors.New("admin role required")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidUser    = errors.New("invalid user")
)

type Service struct {
	store repository.Store
	log   *slog.Logger
	now   func() time.Time
}

func New(store repository.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	const op = "service.users.List"

	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return users, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "service.users.Get"

	u, err := s.store.Users().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return u, nil
}

// Authorize loads the caller and requires the admin role on the stored
// record. The role claimed by a token is not consulted.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "service.users.Authorize"

	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !u.IsAdmin() {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAdmin)
	}

	return u, nil
}

type Input struct {
	FirstName string      `json:"firstName" validate:"required"`
	LastName  string      `json:"lastName" validate:"required"`
	Email     string      `json:"email" validate:"required,email"`
	Role      domain.Role `json:"role" validate:"omitempty,oneof=user admin"`
}

// Create provisions an account record for someone the identity provider
// already knows.
func (s *Service) Create(ctx context.Context, in Input) (*domain.User, error) {
	const op = "service.users.Create"

	if err := domain.Validate(in); err != nil {
		return nil, fmt.Errorf("%s:%w: %w", op, ErrInvalidUser, err)
	}

	u := &domain.User{
		ID:        uuid.New(),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      in.Role,
		CreatedAt: s.now().UTC(),
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}

	if err := s.store.Users().Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return u, nil
}

// SetRole changes another user's role.
//
// Parameters:
//   - ctx: request-scoped context.
//   - actorID: the admin making the change.
//   - targetID: the user whose role changes.
//   - role: domain.RoleUser or domain.RoleAdmin.
//
// Returns:
//   - *domain.User: the updated user.
//   - error: users.ErrSelfRoleChange, ErrInvalidRole or ErrUserNotFound.
func (s *Service) SetRole(ctx context.Context, actorID, targetID uuid.UUID, role domain.Role) (*domain.User, error) {
	const op = "service.users.SetRole"

	if actorID == targetID {
		return nil, fmt.Errorf("%s:%w", op, ErrSelfRoleChange)
	}

	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidRole)
	}

	u, err := s.store.Users().SetRole(ctx, targetID, role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.log.InfoContext(ctx, "user role changed",
		slog.String("actor_id", actorID.String()),
		slog.String("user_id", targetID.String()),
		slog.String("role", string(role)),
	)

	return u, nil
}
