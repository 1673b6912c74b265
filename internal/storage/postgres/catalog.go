package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/promotion"
)

const (
	listProductsSQL = `SELECT id, name, price FROM products ORDER BY id`

	getProductsByIDsSQL = `SELECT id, name, price FROM products WHERE id = ANY($1) ORDER BY id`

	promotionColumns = `product_id, id, kind, amount, required_qty, price, free_qty`

	listPromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions ORDER BY product_id, position`

	getPromotionsByProductIDsSQL = `SELECT ` + promotionColumns + `
		FROM promotions WHERE product_id = ANY($1) ORDER BY product_id, position`

	upsertProductSQL = `INSERT INTO products (id, name, price) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`

	deletePromotionsOfSQL = `DELETE FROM promotions WHERE product_id = $1`

	insertPromotionSQL = `INSERT INTO promotions (id, product_id, position, kind, amount, required_qty, price, free_qty)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

var _ product.Catalog = (*Catalog)(nil)

// Catalog implements product.Catalog backed by the products and promotions tables.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog that uses the given pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// List returns all products ordered by ID.
func (c *Catalog) List(ctx context.Context) ([]product.Product, error) {
	return c.load(ctx, listProductsSQL, listPromotionsSQL)
}

// FindByID returns a single product by its identifier.
func (c *Catalog) FindByID(ctx context.Context, id string) (*product.Product, error) {
	products, err := c.FindAllByID(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, product.ErrNotFound
	}
	return &products[0], nil
}

// FindAllByID returns the products matching any of the given IDs.
func (c *Catalog) FindAllByID(ctx context.Context, ids []string) ([]product.Product, error) {
	return c.load(ctx, getProductsByIDsSQL, getPromotionsByProductIDsSQL, ids)
}

func (c *Catalog) load(ctx context.Context, productsSQL, promotionsSQL string, args ...any) ([]product.Product, error) {
	rows, err := c.pool.Query(ctx, productsSQL, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "collect products")
	}
	if len(products) == 0 {
		return products, nil
	}

	rows, err = c.pool.Query(ctx, promotionsSQL, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query promotions")
	}
	promos, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, errors.Wrap(err, "collect promotions")
	}

	byProduct := make(map[string][]promotion.Promotion, len(products))
	for _, p := range promos {
		byProduct[p.productID] = append(byProduct[p.productID], p.Promotion)
	}
	for i := range products {
		products[i].Promotions = byProduct[products[i].ID]
	}
	return products, nil
}

// Upsert inserts or replaces products together with their promotions in
// one transaction.
func (c *Catalog) Upsert(ctx context.Context, products []product.Product) error {
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		for _, p := range products {
			if _, err := tx.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price); err != nil {
				return errors.Wrapf(err, "upsert product %q", p.ID)
			}
			if _, err := tx.Exec(ctx, deletePromotionsOfSQL, p.ID); err != nil {
				return errors.Wrapf(err, "delete promotions of %q", p.ID)
			}
			for pos, promo := range p.Promotions {
				_, err := tx.Exec(ctx, insertPromotionSQL,
					promo.ID, p.ID, pos, string(promo.Kind),
					promo.Amount, promo.RequiredQty, promo.Price, promo.FreeQty,
				)
				if err != nil {
					return errors.Wrapf(err, "insert promotion %q", promo.ID)
				}
			}
		}
		return nil
	})
}

type promotionRow struct {
	promotion.Promotion
	productID string
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price)
	return p, err
}

func scanPromotion(row pgx.CollectableRow) (promotionRow, error) {
	var (
		r    promotionRow
		kind string
	)
	err := row.Scan(&r.productID, &r.ID, &kind, &r.Amount, &r.RequiredQty, &r.Price, &r.FreeQty)
	r.Kind = promotion.Kind(kind)
	return r, err
}
