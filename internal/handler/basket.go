package handler

import (
	"net/http"
	"strconv"
)

// CreateBasket handles POST /baskets.
func (h *Handler) CreateBasket(w http.ResponseWriter, r *http.Request) {
	b, err := h.baskets.Create(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/baskets/"+strconv.FormatInt(b.ID, 10))
	writeJSON(w, http.StatusCreated, encodeBasket(b))
}

// GetBasket handles GET /baskets/{id}.
func (h *Handler) GetBasket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket id")
		return
	}
	b, err := h.baskets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeBasket(b))
}

// AddBasketItem handles POST /baskets/{id}/item. The path id wins over any
// basketId in the body.
func (h *Handler) AddBasketItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket id")
		return
	}
	req, err := decodeItemRequest(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.BasketID = id
	h.addItem(w, r, req)
}

// ClearBasket handles POST /baskets/{id}/clear.
func (h *Handler) ClearBasket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket id")
		return
	}
	if err := h.baskets.ClearItems(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelBasket handles POST /baskets/{id}/cancel.
func (h *Handler) CancelBasket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket id")
		return
	}
	if err := h.baskets.Cancel(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSavings handles GET /baskets/{id}/savings.
func (h *Handler) GetSavings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket id")
		return
	}
	s, err := h.baskets.CalculateSavings(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeSavings(s))
}

// Checkout handles POST /baskets/{id}/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket id")
		return
	}
	b, err := h.baskets.Checkout(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeBasket(b))
}
