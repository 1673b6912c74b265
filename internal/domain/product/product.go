package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/promotion"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the read model of a catalog item. Price is in pence.
type Product struct {
	ID         string
	Name       string
	Price      int64
	Promotions []promotion.Promotion
}

// Catalog is the read-only source of product prices and promotions.
type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	// FindByID returns ErrNotFound when the product is absent.
	FindByID(ctx context.Context, id string) (*Product, error)
	// FindAllByID omits absent ids from the result.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
}
