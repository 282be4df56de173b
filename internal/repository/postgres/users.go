package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixmarket/internal/domain"
)

const userColumns = `id, first_name, last_name, email, role, created_at`

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.UserRepo.Get"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	const op = "postgres.UserRepo.List"

	rows, err := r.handle().Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Create inserts a user. A duplicate email surfaces as repository.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Create"

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO users(`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.FirstName, u.LastName, u.Email, string(u.Role), u.CreatedAt,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role domain.Role) (*domain.User, error) {
	const op = "postgres.UserRepo.SetRole"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`UPDATE users SET role = $2 WHERE id = $1
		 RETURNING `+userColumns,
		id, string(role),
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return u, nil
}
