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
	basketColumns = `id, status, total, created_at, updated_at`

	createBasketSQL = `INSERT INTO baskets (status) VALUES ('OPEN') RETURNING ` + basketColumns

	getBasketSQL = `SELECT ` + basketColumns + ` FROM baskets WHERE id = $1`

	getBasketForUpdateSQL = getBasketSQL + ` FOR UPDATE`

	saveBasketSQL = `UPDATE baskets SET status = $2, total = $3,
		updated_at = greatest(now(), updated_at + interval '1 microsecond')
		WHERE id = $1`

	itemColumns = `id, basket_id, product_id, quantity`

	listItemsSQL = `SELECT ` + itemColumns + ` FROM basket_items WHERE basket_id = $1 ORDER BY id`

	getItemSQL = `SELECT ` + itemColumns + ` FROM basket_items WHERE id = $1`

	insertItemSQL = `INSERT INTO basket_items (basket_id, product_id, quantity)
		VALUES ($1, $2, $3) RETURNING ` + itemColumns

	updateItemSQL = `UPDATE basket_items SET quantity = $2 WHERE id = $1 RETURNING ` + itemColumns

	deleteItemSQL = `DELETE FROM basket_items WHERE id = $1`

	deleteItemsOfSQL = `DELETE FROM basket_items WHERE basket_id = $1`

	insertEventSQL = `INSERT INTO outbox_events (id, event_type, basket_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ basket.Store = (*BasketStore)(nil)

// BasketStore implements basket.Store backed by PostgreSQL. Outside InTx
// every call runs in its own implicit transaction.
type BasketStore struct {
	basketQueries
	pool *pgxpool.Pool
}

// NewBasketStore returns a BasketStore that uses the given pool.
func NewBasketStore(pool *pgxpool.Pool) *BasketStore {
	return &BasketStore{
		basketQueries: basketQueries{db: pool},
		pool:          pool,
	}
}

// InTx runs fn inside a transaction; GetForUpdate row locks are held until
// it commits or rolls back.
func (s *BasketStore) InTx(ctx context.Context, fn func(basket.Repository) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&basketQueries{db: tx})
	})
}

type basketQueries struct {
	db dbtx
}

func (q *basketQueries) Create(ctx context.Context) (basket.Basket, error) {
	rows, err := q.db.Query(ctx, createBasketSQL)
	if err != nil {
		return basket.Basket{}, errors.Wrap(err, "insert basket")
	}
	return pgx.CollectExactlyOneRow(rows, scanBasket)
}

func (q *basketQueries) Get(ctx context.Context, id int64) (basket.Basket, error) {
	return q.getBasket(ctx, getBasketSQL, id)
}

func (q *basketQueries) GetForUpdate(ctx context.Context, id int64) (basket.Basket, error) {
	return q.getBasket(ctx, getBasketForUpdateSQL, id)
}

func (q *basketQueries) getBasket(ctx context.Context, sql string, id int64) (basket.Basket, error) {
	rows, err := q.db.Query(ctx, sql, id)
	if err != nil {
		return basket.Basket{}, errors.Wrapf(err, "get basket %d", id)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBasket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return basket.Basket{}, basket.ErrNotFound
		}
		return basket.Basket{}, errors.Wrapf(err, "get basket %d", id)
	}
	return b, nil
}

func (q *basketQueries) Save(ctx context.Context, b basket.Basket) error {
	tag, err := q.db.Exec(ctx, saveBasketSQL, b.ID, string(b.Status), b.Total)
	if err != nil {
		return errors.Wrapf(err, "update basket %d", b.ID)
	}
	if tag.RowsAffected() == 0 {
		return basket.ErrNotFound
	}
	return nil
}

func (q *basketQueries) Items(ctx context.Context, basketID int64) ([]basket.Item, error) {
	rows, err := q.db.Query(ctx, listItemsSQL, basketID)
	if err != nil {
		return nil, errors.Wrapf(err, "list items of basket %d", basketID)
	}
	return pgx.CollectRows(rows, scanItem)
}

func (q *basketQueries) GetItem(ctx context.Context, id int64) (basket.Item, error) {
	rows, err := q.db.Query(ctx, getItemSQL, id)
	if err != nil {
		return basket.Item{}, errors.Wrapf(err, "get item %d", id)
	}
	return collectItem(rows, id)
}

func (q *basketQueries) SaveItem(ctx context.Context, item basket.Item) (basket.Item, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if item.ID == 0 {
		rows, err = q.db.Query(ctx, insertItemSQL, item.BasketID, item.ProductID, item.Quantity)
	} else {
		rows, err = q.db.Query(ctx, updateItemSQL, item.ID, item.Quantity)
	}
	if err != nil {
		return basket.Item{}, errors.Wrapf(err, "save item of basket %d", item.BasketID)
	}
	return collectItem(rows, item.ID)
}

func (q *basketQueries) DeleteItem(ctx context.Context, id int64) error {
	tag, err := q.db.Exec(ctx, deleteItemSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete item %d", id)
	}
	if tag.RowsAffected() == 0 {
		return basket.ErrNotFound
	}
	return nil
}

func (q *basketQueries) DeleteItemsOf(ctx context.Context, basketID int64) error {
	if _, err := q.db.Exec(ctx, deleteItemsOfSQL, basketID); err != nil {
		return errors.Wrapf(err, "delete items of basket %d", basketID)
	}
	return nil
}

func (q *basketQueries) RecordEvent(ctx context.Context, e basket.Event) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return errors.Wrapf(err, "parse event id %q", e.ID)
	}
	if _, err := q.db.Exec(ctx, insertEventSQL, id, string(e.Type), e.BasketID, e.Payload, e.OccurredAt); err != nil {
		return errors.Wrapf(err, "insert %s event", e.Type)
	}
	return nil
}

func collectItem(rows pgx.Rows, id int64) (basket.Item, error) {
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return basket.Item{}, basket.ErrNotFound
		}
		return basket.Item{}, errors.Wrapf(err, "collect item %d", id)
	}
	return item, nil
}

func scanBasket(row pgx.CollectableRow) (basket.Basket, error) {
	var (
		b      basket.Basket
		status string
	)
	err := row.Scan(&b.ID, &status, &b.Total, &b.CreatedAt, &b.UpdatedAt)
	b.Status = basket.Status(status)
	return b, err
}

func scanItem(row pgx.CollectableRow) (basket.Item, error) {
	var item basket.Item
	err := row.Scan(&item.ID, &item.BasketID, &item.ProductID, &item.Quantity)
	return item, err
}
