package basket

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned by a Repository when a basket or item row does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError indicates the basket does not exist.
type NotFoundError struct {
	BasketID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("basket %d not found", e.BasketID)
}

// NotOpenError indicates the basket is cancelled or checked out.
type NotOpenError struct {
	BasketID int64
}

func (e *NotOpenError) Error() string {
	return fmt.Sprintf("basket %d is not open", e.BasketID)
}

// ItemNotFoundError indicates the basket item does not exist.
type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("basket item %d not found", e.ItemID)
}

// InvalidQuantityError indicates a non-positive quantity. ItemID is zero
// when the item has not been created yet.
type InvalidQuantityError struct {
	ItemID   int64
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	if e.ItemID == 0 {
		return fmt.Sprintf("invalid quantity %d: must be greater than 0", e.Quantity)
	}
	return fmt.Sprintf("invalid quantity %d for basket item %d: must be greater than 0", e.Quantity, e.ItemID)
}
