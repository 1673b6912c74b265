package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
	"github.com/TelesNascimento25/Checkout-service/internal/pricing"
	"github.com/TelesNascimento25/Checkout-service/pkg/httpmiddleware"
)

func writeBadRequest(w http.ResponseWriter, msg string) {
	httpmiddleware.WriteError(w, http.StatusBadRequest, msg)
}

// writeDomainError maps domain errors to HTTP statuses. Anything unknown is
// logged and hidden behind a generic 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound     *basket.NotFoundError
		itemNotFound *basket.ItemNotFoundError
		notOpen      *basket.NotOpenError
		badQuantity  *basket.InvalidQuantityError
		noProduct    *pricing.ProductNotFoundError
	)
	switch {
	case errors.As(err, &notFound), errors.As(err, &itemNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &notOpen), errors.As(err, &badQuantity):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &noProduct):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
