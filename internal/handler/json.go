package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/basket"
	"github.com/TelesNascimento25/Checkout-service/internal/pricing"
)

const maxBodySize = 1 << 16

// itemRequest is the body of item create and update calls. Absent fields
// keep their zero value, so a missing quantity is rejected as invalid.
type itemRequest struct {
	BasketID  int64
	ProductID string
	Quantity  int
}

func decodeItemRequest(r *http.Request) (itemRequest, error) {
	var req itemRequest

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return req, errors.Wrap(err, "read body")
	}

	d := jx.DecodeBytes(body)
	err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		switch string(key) {
		case "basketId":
			v, err := d.Int64()
			if err != nil {
				return errors.Wrap(err, "basketId")
			}
			req.BasketID = v
		case "productId":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "productId")
			}
			req.ProductID = v
		case "quantity":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "quantity")
			}
			req.Quantity = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return itemRequest{}, errors.Wrap(err, "malformed body")
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// amount renders a major-unit amount as a JSON number with two decimals.
func amount(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func encodeItemFields(e *jx.Encoder, item basket.Item) {
	e.FieldStart("id")
	e.Int64(item.ID)
	e.FieldStart("basketId")
	e.Int64(item.BasketID)
	e.FieldStart("productId")
	e.Str(item.ProductID)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
}

func encodeItem(item basket.Item) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ObjStart()
		encodeItemFields(e, item)
		e.ObjEnd()
	}
}

func encodeBasket(b basket.Basket) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(b.ID)
		e.FieldStart("status")
		e.Str(string(b.Status))
		if b.Total.Valid {
			e.FieldStart("total")
			amount(e, b.Total.Decimal)
		}
		e.FieldStart("basketItems")
		e.ArrStart()
		for _, item := range b.Items {
			e.ObjStart()
			encodeItemFields(e, item)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.FieldStart("itemsCount")
		e.Int(b.ItemsCount())
		e.ObjEnd()
	}
}

func encodeSavings(s pricing.Savings) func(e *jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("totalPrice")
		amount(e, s.TotalPrice)
		e.FieldStart("promotionalPrice")
		amount(e, s.PromotionalPrice)
		e.FieldStart("savings")
		amount(e, s.Savings)
		e.ObjEnd()
	}
}
