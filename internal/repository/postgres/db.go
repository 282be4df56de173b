package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

// RunTx runs fn in a serializable read-write transaction. Repositories handed
// to fn are bound to the transaction; the pool-bound ones on Store are not.
func (s *Store) RunTx(
	ctx context.Context,
	fn func(ctx context.Context, tx repository.Repositories) error,
) error {
	const op = "postgres.Store.RunTx"

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepos{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, translateDBErr(err))
	}

	return nil
}

func (s *Store) Events() repository.EventRepository   { return &EventRepo{pool: s.pool} }
func (s *Store) Tickets() repository.TicketRepository { return &TicketRepo{pool: s.pool} }
func (s *Store) Users() repository.UserRepository     { return &UserRepo{pool: s.pool} }

type txRepos struct {
	db DB
}

func (r txRepos) Events() repository.EventRepository   { return (&EventRepo{}).With(r.db) }
func (r txRepos) Tickets() repository.TicketRepository { return (&TicketRepo{}).With(r.db) }
func (r txRepos) Users() repository.UserRepository     { return (&UserRepo{}).With(r.db) }

type scanner interface {
	Scan(dest ...any) error
}
