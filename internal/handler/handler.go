// Package handler exposes the basket manager and product catalog over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
	"github.com/TelesNascimento25/Checkout-service/internal/domain/product"
)

// Handler serves the checkout REST API.
type Handler struct {
	baskets *basket.Manager
	catalog product.Catalog
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(baskets *basket.Manager, catalog product.Catalog) *Handler {
	return &Handler{
		baskets: baskets,
		catalog: catalog,
	}
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/baskets", func(r chi.Router) {
		r.Post("/", h.CreateBasket)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetBasket)
			r.Post("/item", h.AddBasketItem)
			r.Post("/clear", h.ClearBasket)
			r.Post("/cancel", h.CancelBasket)
			r.Get("/savings", h.GetSavings)
			r.Post("/checkout", h.Checkout)
		})
	})
	r.Route("/basketItems", func(r chi.Router) {
		r.Post("/", h.CreateBasketItem)
		r.Get("/{id}", h.GetBasketItem)
		r.Patch("/{id}", h.UpdateBasketItem)
		r.Delete("/{id}", h.DeleteBasketItem)
	})
	r.Get("/products", h.ListProducts)
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
