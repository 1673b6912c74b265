package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
)

var _ product.Catalog = (*Catalog)(nil)

// Catalog is a fixed, read-only product.Catalog.
type Catalog struct {
	byID map[string]product.Product
}

// NewCatalog creates a Catalog holding products. Later duplicates win.
func NewCatalog(products []product.Product) *Catalog {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{byID: byID}
}

// List returns all products ordered by ID.
func (c *Catalog) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// FindByID returns product.ErrNotFound for unknown ids.
func (c *Catalog) FindByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// FindAllByID returns the known products among ids.
func (c *Catalog) FindAllByID(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
