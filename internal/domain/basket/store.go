package basket

import "context"

// Repository defines persistence operations for baskets and their items.
// Lookups return ErrNotFound when the row does not exist.
type Repository interface {
	Create(ctx context.Context) (Basket, error)
	// Get returns the basket without its items.
	Get(ctx context.Context, id int64) (Basket, error)
	// GetForUpdate is Get that also locks the basket until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (Basket, error)
	// Save persists status and total and advances UpdatedAt strictly.
	Save(ctx context.Context, b Basket) error

	Items(ctx context.Context, basketID int64) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	// SaveItem inserts items with a zero ID and updates the rest.
	SaveItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, id int64) error
	DeleteItemsOf(ctx context.Context, basketID int64) error

	RecordEvent(ctx context.Context, e Event) error
}

// Store is a Repository that can run a unit of work atomically.
type Store interface {
	Repository
	// InTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise, returning fn's error unchanged.
	InTx(ctx context.Context, fn func(Repository) error) error
}
