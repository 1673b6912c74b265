package product

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/TelesNascimento25/Checkout-service/internal/domain/promotion"
)

// Encode writes p in the catalog wire format.
func (p Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Int64(p.Price)
	e.FieldStart("promotions")
	e.ArrStart()
	for _, promo := range p.Promotions {
		promo.Encode(e)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Decode reads p from the catalog wire format.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			p.Price, err = d.Int64()
		case "promotions":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				var promo promotion.Promotion
				if err := promo.Decode(d); err != nil {
					return err
				}
				p.Promotions = append(p.Promotions, promo)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode product %q", key)
		}
		return nil
	})
}

// MarshalJSON encodes p in the catalog wire format.
func (p Product) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	p.Encode(&e)
	return e.Bytes(), nil
}

// UnmarshalJSON decodes p from the catalog wire format.
func (p *Product) UnmarshalJSON(data []byte) error {
	return p.Decode(jx.DecodeBytes(data))
}

// DecodeList reads a JSON array of products.
func DecodeList(d *jx.Decoder) ([]Product, error) {
	var out []Product
	err := d.Arr(func(d *jx.Decoder) error {
		var p Product
		if err := p.Decode(d); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
