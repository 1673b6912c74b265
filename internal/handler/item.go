package handler

import (
	"net/http"
	"strconv"
)

// CreateBasketItem handles POST /basketItems.
func (h *Handler) CreateBasketItem(w http.ResponseWriter, r *http.Request) {
	req, err := decodeItemRequest(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.BasketID <= 0 {
		writeBadRequest(w, "basketId is required")
		return
	}
	h.addItem(w, r, req)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request, req itemRequest) {
	if req.ProductID == "" {
		writeBadRequest(w, "productId is required")
		return
	}
	item, err := h.baskets.AddItem(r.Context(), req.BasketID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/basketItems/"+strconv.FormatInt(item.ID, 10))
	writeJSON(w, http.StatusCreated, encodeItem(item))
}

// GetBasketItem handles GET /basketItems/{id}.
func (h *Handler) GetBasketItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket item id")
		return
	}
	item, err := h.baskets.GetItem(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeItem(item))
}

// UpdateBasketItem handles PATCH /basketItems/{id}. Only quantity is read.
func (h *Handler) UpdateBasketItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket item id")
		return
	}
	req, err := decodeItemRequest(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	item, err := h.baskets.UpdateItem(r.Context(), id, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeItem(item))
}

// DeleteBasketItem handles DELETE /basketItems/{id}.
func (h *Handler) DeleteBasketItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "invalid basket item id")
		return
	}
	if err := h.baskets.DeleteItem(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
