package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
)

const (
	pendingEventsSQL = `SELECT id::text, event_type, basket_id, payload, occurred_at
		FROM outbox_events WHERE published_at IS NULL
		ORDER BY occurred_at LIMIT $1`

	markPublishedSQL = `UPDATE outbox_events SET published_at = now() WHERE id = ANY($1)`
)

// Outbox reads recorded basket events that have not been published yet.
type Outbox struct {
	pool *pgxpool.Pool
}

// NewOutbox returns an Outbox that uses the given pool.
func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// Pending returns up to limit unpublished events, oldest first.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]basket.Event, error) {
	rows, err := o.pool.Query(ctx, pendingEventsSQL, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query pending events")
	}
	return pgx.CollectRows(rows, scanEvent)
}

// MarkPublished flags the given events as delivered.
func (o *Outbox) MarkPublished(ctx context.Context, ids []string) error {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		u, err := uuid.Parse(id)
		if err != nil {
			return errors.Wrapf(err, "parse event id %q", id)
		}
		parsed = append(parsed, u)
	}
	if _, err := o.pool.Exec(ctx, markPublishedSQL, parsed); err != nil {
		return errors.Wrap(err, "mark events published")
	}
	return nil
}

func scanEvent(row pgx.CollectableRow) (basket.Event, error) {
	var (
		e   basket.Event
		typ string
	)
	err := row.Scan(&e.ID, &typ, &e.BasketID, &e.Payload, &e.OccurredAt)
	e.Type = basket.EventType(typ)
	return e, err
}
