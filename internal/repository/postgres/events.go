package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

const eventColumns = `id, name, description, event_date, event_time, location, promoter,
	status, submitted_at, ticket_types, ticket_count, tickets_sold`

type EventRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EventRepo) With(db DB) *EventRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EventRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func scanEvent(row scanner) (*domain.Event, error) {
	var (
		e           domain.Event
		promoter    []byte
		ticketTypes []byte
		status      string
	)

	if err := row.Scan(
		&e.ID, &e.Name, &e.Description, &e.Date, &e.Time, &e.Location, &promoter,
		&status, &e.SubmittedAt, &ticketTypes, &e.TicketCount, &e.TicketsSold,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(promoter, &e.Promoter); err != nil {
		return nil, fmt.Errorf("decode promoter: %w", err)
	}
	if err := json.Unmarshal(ticketTypes, &e.TicketTypes); err != nil {
		return nil, fmt.Errorf("decode ticket types: %w", err)
	}
	e.Status = domain.EventStatus(status)

	return &e, nil
}

func (r *EventRepo) queryEvents(ctx context.Context, op, sql string, args ...any) ([]domain.Event, error) {
	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Get retrieves an event by its ID.
//
// Returns:
//   - *domain.Event: the event when found.
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.EventRepo.Get"

	e, err := scanEvent(r.handle().QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

// GetForUpdate retrieves an event and takes a row lock on it that is held
// until the surrounding transaction ends.
func (r *EventRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	const op = "postgres.EventRepo.GetForUpdate"

	e, err := scanEvent(r.handle().QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events WHERE id = $1
		 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return e, nil
}

func (r *EventRepo) ListByStatus(ctx context.Context, status domain.EventStatus) ([]domain.Event, error) {
	return r.queryEvents(ctx, "postgres.EventRepo.ListByStatus",
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = $1
		 ORDER BY event_date, id`,
		string(status),
	)
}

func (r *EventRepo) ListAll(ctx context.Context) ([]domain.Event, error) {
	return r.queryEvents(ctx, "postgres.EventRepo.ListAll",
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY submitted_at DESC, id`,
	)
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	const op = "postgres.EventRepo.Create"

	promoter, ticketTypes, err := encodeEventJSON(e)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if _, err := r.handle().Exec(ctx,
		`INSERT INTO events(`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.Name, e.Description, e.Date, e.Time, e.Location, promoter,
		string(e.Status), e.SubmittedAt, ticketTypes, e.TicketCount, e.TicketsSold,
	); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *EventRepo) Update(ctx context.Context, e *domain.Event) error {
	const op = "postgres.EventRepo.Update"

	promoter, ticketTypes, err := encodeEventJSON(e)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := r.handle().Exec(ctx,
		`UPDATE events
		 SET name = $2, description = $3, event_date = $4, event_time = $5,
		     location = $6, promoter = $7, ticket_types = $8, ticket_count = $9
		 WHERE id = $1`,
		e.ID, e.Name, e.Description, e.Date, e.Time, e.Location, promoter, ticketTypes, e.TicketCount,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func (r *EventRepo) SetStatus(ctx context.Context, id uuid.UUID, from, to domain.EventStatus) error {
	const op = "postgres.EventRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE events SET status = $3
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, op, id, repository.ErrPrecondition)
	}

	return nil
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.EventRepo.Delete"

	tag, err := r.handle().Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// AddTicketsSold moves tickets_sold by delta in a single conditional update.
//
// Returns:
//   - int: the new tickets_sold value.
//   - error: repository.ErrCapacity if the result would leave [0, ticket_count].
//   - error: repository.ErrNotFound if the event is not found.
func (r *EventRepo) AddTicketsSold(ctx context.Context, id uuid.UUID, delta int) (int, error) {
	const op = "postgres.EventRepo.AddTicketsSold"

	var sold int
	err := r.handle().QueryRow(ctx,
		`UPDATE events SET tickets_sold = tickets_sold + $2
		 WHERE id = $1
		   AND tickets_sold + $2 >= 0
		   AND tickets_sold + $2 <= ticket_count
		 RETURNING tickets_sold`,
		id, delta,
	).Scan(&sold)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, r.missingOr(ctx, op, id, repository.ErrCapacity)
	}
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return sold, nil
}

func (r *EventRepo) SetTicketsSold(ctx context.Context, id uuid.UUID, n int) error {
	const op = "postgres.EventRepo.SetTicketsSold"

	tag, err := r.handle().Exec(ctx,
		`UPDATE events SET tickets_sold = $2 WHERE id = $1`,
		id, n,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

// missingOr returns ErrNotFound when the event does not exist and cause
// otherwise.
func (r *EventRepo) missingOr(ctx context.Context, op string, id uuid.UUID, cause error) error {
	var exists bool
	if err := r.handle().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}
	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	return fmt.Errorf("%s:%w", op, cause)
}

func encodeEventJSON(e *domain.Event) (promoter, ticketTypes []byte, err error) {
	promoter, err = json.Marshal(e.Promoter)
	if err != nil {
		return nil, nil, fmt.Errorf("encode promoter: %w", err)
	}

	tts := e.TicketTypes
	if tts == nil {
		tts = []domain.TicketType{}
	}
	ticketTypes, err = json.Marshal(tts)
	if err != nil {
		return nil, nil, fmt.Errorf("encode ticket types: %w", err)
	}

	return promoter, ticketTypes, nil
}
