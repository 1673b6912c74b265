package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			p.Encode(e)
		}
		e.ArrEnd()
	})
}
