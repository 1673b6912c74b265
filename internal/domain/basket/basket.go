// Package basket implements the basket lifecycle: creation, item management,
// cancellation and checkout.
package basket

import (
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a basket.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusCancelled  Status = "CANCELLED"
	StatusCheckedOut Status = "CHECKED_OUT"
)

// Basket is a customer's collection of items. Total is set only once the
// basket is checked out and is expressed in major units.
type Basket struct {
	ID        int64
	Status    Status
	Total     decimal.NullDecimal
	Items     []Item
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether items may still be changed.
func (b Basket) IsOpen() bool {
	return b.Status == StatusOpen
}

// ItemsCount returns the number of lines in the basket.
func (b Basket) ItemsCount() int {
	return len(b.Items)
}

// SnapshotToken identifies the basket's current contents. Stores advance
// UpdatedAt on every item mutation, so the token changes with them.
func (b Basket) SnapshotToken() string {
	return strconv.FormatInt(b.ID, 10) + "@" + strconv.FormatInt(b.UpdatedAt.UnixNano(), 10)
}

// WithStatus returns a copy of b with the given status.
func (b Basket) WithStatus(s Status) Basket {
	b.Status = s
	return b
}

// WithTotal returns a copy of b with a frozen total.
func (b Basket) WithTotal(total decimal.Decimal) Basket {
	b.Total = decimal.NewNullDecimal(total)
	return b
}

// WithItems returns a copy of b holding a copy of items.
func (b Basket) WithItems(items []Item) Basket {
	b.Items = slices.Clone(items)
	return b
}

// Item is a product line in a basket.
type Item struct {
	ID        int64
	BasketID  int64
	ProductID string
	Quantity  int
}

// WithQuantity returns a copy of i with the given quantity.
func (i Item) WithQuantity(q int) Item {
	i.Quantity = q
	return i
}

// EventType names a recorded lifecycle transition.
type EventType string

const (
	EventCancelled  EventType = "basket.cancelled"
	EventCheckedOut EventType = "basket.checked_out"
)

// Event is a lifecycle transition recorded together with the state change
// and published asynchronously.
type Event struct {
	ID         string
	Type       EventType
	BasketID   int64
	Payload    []byte
	OccurredAt time.Time
}
