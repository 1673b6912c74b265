package basket

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TelesNascimento25/Checkout-service/internal/pricing"
)

// Pricer quotes raw and promotional totals for a set of lines. QuoteSnapshot
// may reuse a recent resolution for the same snapshot token and items.
type Pricer interface {
	Quote(ctx context.Context, lines []pricing.Line) (pricing.Quote, error)
	QuoteSnapshot(ctx context.Context, token string, lines []pricing.Line) (pricing.Quote, error)
}

// Manager enforces the basket state machine. Every mutation runs in a store
// transaction holding the basket lock, so guards and writes cannot interleave
// with another mutation of the same basket.
type Manager struct {
	store  Store
	pricer Pricer
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(store Store, pricer Pricer) *Manager {
	return &Manager{
		store:  store,
		pricer: pricer,
		now:    time.Now,
	}
}

// Create opens a new empty basket.
func (m *Manager) Create(ctx context.Context) (Basket, error) {
	b, err := m.store.Create(ctx)
	if err != nil {
		return Basket{}, errors.Wrap(err, "create basket")
	}
	zctx.From(ctx).Info("Basket created", zap.Int64("basket_id", b.ID))
	return b, nil
}

// Get returns the basket with its items.
func (m *Manager) Get(ctx context.Context, id int64) (Basket, error) {
	b, err := m.store.Get(ctx, id)
	if err != nil {
		return Basket{}, basketError(err, id)
	}
	items, err := m.store.Items(ctx, id)
	if err != nil {
		return Basket{}, errors.Wrapf(err, "list items of basket %d", id)
	}
	return b.WithItems(items), nil
}

// GetItem returns a single basket item.
func (m *Manager) GetItem(ctx context.Context, itemID int64) (Item, error) {
	item, err := m.store.GetItem(ctx, itemID)
	if err != nil {
		return Item{}, itemError(err, itemID)
	}
	return item, nil
}

// AddItem appends a product line to an open basket.
func (m *Manager) AddItem(ctx context.Context, basketID int64, productID string, quantity int) (Item, error) {
	if quantity <= 0 {
		return Item{}, &InvalidQuantityError{Quantity: quantity}
	}

	var item Item
	err := m.store.InTx(ctx, func(repo Repository) error {
		b, err := lockOpen(ctx, repo, basketID)
		if err != nil {
			return err
		}
		saved, err := repo.SaveItem(ctx, Item{
			BasketID:  basketID,
			ProductID: productID,
			Quantity:  quantity,
		})
		if err != nil {
			return errors.Wrapf(err, "add item to basket %d", basketID)
		}
		item = saved
		return touch(ctx, repo, b)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem changes the quantity of an item in an open basket.
func (m *Manager) UpdateItem(ctx context.Context, itemID int64, quantity int) (Item, error) {
	var item Item
	err := m.store.InTx(ctx, func(repo Repository) error {
		current, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return itemError(err, itemID)
		}
		if quantity <= 0 {
			return &InvalidQuantityError{ItemID: itemID, Quantity: quantity}
		}
		b, err := lockOpen(ctx, repo, current.BasketID)
		if err != nil {
			return err
		}
		saved, err := repo.SaveItem(ctx, current.WithQuantity(quantity))
		if err != nil {
			return itemError(err, itemID)
		}
		item = saved
		return touch(ctx, repo, b)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item from an open basket.
func (m *Manager) DeleteItem(ctx context.Context, itemID int64) error {
	return m.store.InTx(ctx, func(repo Repository) error {
		current, err := repo.GetItem(ctx, itemID)
		if err != nil {
			return itemError(err, itemID)
		}
		b, err := lockOpen(ctx, repo, current.BasketID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, itemID); err != nil {
			return itemError(err, itemID)
		}
		return touch(ctx, repo, b)
	})
}

// ClearItems removes every item of the basket regardless of its status.
// Clearing an unknown basket is a no-op.
func (m *Manager) ClearItems(ctx context.Context, basketID int64) error {
	return m.store.InTx(ctx, func(repo Repository) error {
		b, err := repo.GetForUpdate(ctx, basketID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return errors.Wrapf(err, "lock basket %d", basketID)
		}
		if err := repo.DeleteItemsOf(ctx, basketID); err != nil {
			return errors.Wrapf(err, "clear basket %d", basketID)
		}
		return touch(ctx, repo, b)
	})
}

// Cancel moves an open basket to CANCELLED.
func (m *Manager) Cancel(ctx context.Context, basketID int64) error {
	err := m.store.InTx(ctx, func(repo Repository) error {
		b, err := lockOpen(ctx, repo, basketID)
		if err != nil {
			return err
		}
		b = b.WithStatus(StatusCancelled)
		if err := repo.Save(ctx, b); err != nil {
			return errors.Wrapf(err, "save basket %d", basketID)
		}
		return m.record(ctx, repo, EventCancelled, b)
	})
	if err != nil {
		return err
	}
	zctx.From(ctx).Info("Basket cancelled", zap.Int64("basket_id", basketID))
	return nil
}

// Checkout prices an open basket, freezes its total and moves it to
// CHECKED_OUT.
func (m *Manager) Checkout(ctx context.Context, basketID int64) (Basket, error) {
	var out Basket
	err := m.store.InTx(ctx, func(repo Repository) error {
		b, err := lockOpen(ctx, repo, basketID)
		if err != nil {
			return err
		}
		items, err := repo.Items(ctx, basketID)
		if err != nil {
			return errors.Wrapf(err, "list items of basket %d", basketID)
		}
		q, err := m.pricer.Quote(ctx, lines(items))
		if err != nil {
			return errors.Wrapf(err, "price basket %d", basketID)
		}

		b = b.WithStatus(StatusCheckedOut).WithTotal(pricing.ToMajorUnits(q.Total)).WithItems(items)
		if err := repo.Save(ctx, b); err != nil {
			return errors.Wrapf(err, "save basket %d", basketID)
		}
		if err := m.record(ctx, repo, EventCheckedOut, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return Basket{}, err
	}
	zctx.From(ctx).Info("Basket checked out",
		zap.Int64("basket_id", basketID),
		zap.String("total", out.Total.Decimal.StringFixed(2)),
	)
	return out, nil
}

// CalculateSavings prices the basket's items with and without promotions.
// It works for baskets in any status and mutates nothing.
func (m *Manager) CalculateSavings(ctx context.Context, basketID int64) (pricing.Savings, error) {
	b, err := m.Get(ctx, basketID)
	if err != nil {
		return pricing.Savings{}, err
	}
	q, err := m.pricer.QuoteSnapshot(ctx, b.SnapshotToken(), lines(b.Items))
	if err != nil {
		return pricing.Savings{}, errors.Wrapf(err, "price basket %d", basketID)
	}
	return pricing.NewSavings(q), nil
}

func (m *Manager) record(ctx context.Context, repo Repository, typ EventType, b Basket) error {
	e := Event{
		ID:         uuid.New().String(),
		Type:       typ,
		BasketID:   b.ID,
		Payload:    eventPayload(b),
		OccurredAt: m.now(),
	}
	if err := repo.RecordEvent(ctx, e); err != nil {
		return errors.Wrapf(err, "record %s", typ)
	}
	return nil
}

func eventPayload(b Basket) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("basket_id")
	e.Int64(b.ID)
	e.FieldStart("status")
	e.Str(string(b.Status))
	e.FieldStart("items")
	e.Int(b.ItemsCount())
	if b.Total.Valid {
		e.FieldStart("total")
		e.Str(b.Total.Decimal.StringFixed(2))
	}
	e.ObjEnd()
	return e.Bytes()
}

// touch advances the basket's UpdatedAt, and with it its snapshot token.
func touch(ctx context.Context, repo Repository, b Basket) error {
	if err := repo.Save(ctx, b); err != nil {
		return errors.Wrapf(err, "touch basket %d", b.ID)
	}
	return nil
}

// lockOpen locks the basket and checks that it is open.
func lockOpen(ctx context.Context, repo Repository, basketID int64) (Basket, error) {
	b, err := repo.GetForUpdate(ctx, basketID)
	if err != nil {
		return Basket{}, basketError(err, basketID)
	}
	if !b.IsOpen() {
		return Basket{}, &NotOpenError{BasketID: basketID}
	}
	return b, nil
}

func lines(items []Item) []pricing.Line {
	out := make([]pricing.Line, len(items))
	for i, item := range items {
		out[i] = pricing.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}

func basketError(err error, id int64) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{BasketID: id}
	}
	return errors.Wrapf(err, "get basket %d", id)
}

func itemError(err error, id int64) error {
	if errors.Is(err, ErrNotFound) {
		return &ItemNotFoundError{ItemID: id}
	}
	return errors.Wrapf(err, "basket item %d", id)
}
