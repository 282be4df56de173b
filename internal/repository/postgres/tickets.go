package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/repository"
)

const ticketColumns = `id, event_id, ticket_type, price, purchased_at, status, user_id,
	customer_first_name, customer_last_name, customer_email,
	is_checked_in, checked_in_at, checked_in_by`

type TicketRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TicketRepo) With(db DB) *TicketRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TicketRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func ticketDest(t *domain.Ticket, status *string) []any {
	return []any{
		&t.ID, &t.EventID, &t.TicketType, &t.Price, &t.PurchasedAt, status, &t.UserID,
		&t.Customer.FirstName, &t.Customer.LastName, &t.Customer.Email,
		&t.IsCheckedIn, &t.CheckedInAt, &t.CheckedInBy,
	}
}

func scanTicket(row scanner) (*domain.Ticket, error) {
	var (
		t      domain.Ticket
		status string
	)
	if err := row.Scan(ticketDest(&t, &status)...); err != nil {
		return nil, err
	}
	t.Status = domain.TicketStatus(status)
	return &t, nil
}

func (r *TicketRepo) queryTickets(ctx context.Context, op, sql string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.handle().Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TicketRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.Get"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

func (r *TicketRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	const op = "postgres.TicketRepo.GetForUpdate"

	t, err := scanTicket(r.handle().QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return t, nil
}

// InsertBatch writes all tickets in one round trip. An unknown event id fails
// the foreign key and surfaces as repository.ErrPrecondition.
func (r *TicketRepo) InsertBatch(ctx context.Context, tickets []domain.Ticket) error {
	const op = "postgres.TicketRepo.InsertBatch"

	if len(tickets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(
			`INSERT INTO tickets(`+ticketColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			t.ID, t.EventID, t.TicketType, t.Price, t.PurchasedAt, string(t.Status), t.UserID,
			t.Customer.FirstName, t.Customer.LastName, t.Customer.Email,
			t.IsCheckedIn, t.CheckedInAt, t.CheckedInBy,
		)
	}
	if err := r.handle().SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *TicketRepo) MarkCheckedIn(ctx context.Context, id uuid.UUID, at time.Time, by uuid.UUID) error {
	const op = "postgres.TicketRepo.MarkCheckedIn"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets
		 SET is_checked_in = true, checked_in_at = $2, checked_in_by = $3
		 WHERE id = $1 AND NOT is_checked_in`,
		id, at, by,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, op, id, repository.ErrPrecondition)
	}

	return nil
}

func (r *TicketRepo) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.TicketRepo.MarkRefunded"

	tag, err := r.handle().Exec(ctx,
		`UPDATE tickets SET status = 'refunded'
		 WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOr(ctx, op, id, repository.ErrPrecondition)
	}

	return nil
}

func (r *TicketRepo) RefundActiveByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error) {
	return r.queryTickets(ctx, "postgres.TicketRepo.RefundActiveByEvent",
		`UPDATE tickets SET status = 'refunded'
		 WHERE event_id = $1 AND status = 'active'
		 RETURNING `+ticketColumns,
		eventID,
	)
}

func (r *TicketRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Ticket, error) {
	return r.queryTickets(ctx, "postgres.TicketRepo.ListByEvent",
		`SELECT `+ticketColumns+`
		 FROM tickets WHERE event_id = $1
		 ORDER BY purchased_at, id`,
		eventID,
	)
}

func (r *TicketRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Ticket, error) {
	return r.queryTickets(ctx, "postgres.TicketRepo.ListByUser",
		`SELECT `+ticketColumns+`
		 FROM tickets WHERE user_id = $1
		 ORDER BY purchased_at DESC, id`,
		userID,
	)
}

// ListSales joins tickets with their event names. Search matches the ticket
// id exactly or the customer name and email as a case-insensitive substring.
func (r *TicketRepo) ListSales(ctx context.Context, f domain.SalesFilter) ([]domain.Sale, error) {
	const op = "postgres.TicketRepo.ListSales"

	var since *time.Time
	if !f.Since.IsZero() {
		since = &f.Since
	}

	search := strings.TrimSpace(f.Search)

	rows, err := r.handle().Query(ctx,
		`SELECT t.id, t.event_id, t.ticket_type, t.price, t.purchased_at, t.status, t.user_id,
		        t.customer_first_name, t.customer_last_name, t.customer_email,
		        t.is_checked_in, t.checked_in_at, t.checked_in_by, e.name
		 FROM tickets t
		 JOIN events e ON e.id = t.event_id
		 WHERE ($1::timestamptz IS NULL OR e.event_date >= $1)
		   AND ($2::uuid IS NULL OR t.event_id = $2)
		   AND ($3::text = ''
		        OR t.id::text = lower($3)
		        OR t.customer_first_name ILIKE $4
		        OR t.customer_last_name ILIKE $4
		        OR t.customer_email ILIKE $4)
		 ORDER BY t.purchased_at DESC, t.id`,
		since, f.EventID, search, "%"+escapeLike(search)+"%",
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.Sale
	for rows.Next() {
		var (
			s      domain.Sale
			status string
		)
		dest := append(ticketDest(&s.Ticket, &status), &s.EventName)
		if err := rows.Scan(dest...); err != nil {
			return nil, wrapDBErr(op, err)
		}
		s.Status = domain.TicketStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *TicketRepo) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	const op = "postgres.TicketRepo.CountActive"

	var n int
	if err := r.handle().QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE event_id = $1 AND status = 'active'`, eventID,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *TicketRepo) CountCheckedIn(ctx context.Context, eventID uuid.UUID) (int, error) {
	const op = "postgres.TicketRepo.CountCheckedIn"

	var n int
	if err := r.handle().QueryRow(ctx,
		`SELECT count(*) FROM tickets WHERE event_id = $1 AND is_checked_in`, eventID,
	).Scan(&n); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return n, nil
}

func (r *TicketRepo) DeleteByEvent(ctx context.Context, eventID uuid.UUID) (int, error) {
	const op = "postgres.TicketRepo.DeleteByEvent"

	tag, err := r.handle().Exec(ctx, `DELETE FROM tickets WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *TicketRepo) missingOr(ctx context.Context, op string, id uuid.UUID, cause error) error {
	var exists bool
	if err := r.handle().QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}
	if !exists {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}
	return fmt.Errorf("%s:%w", op, cause)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
