package promotion

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Encode writes p as a JSON object, omitting fields its kind does not use.
func (p Promotion) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("type")
	e.Str(string(p.Kind))
	switch p.Kind {
	case KindFlatPercent:
		e.FieldStart("amount")
		e.Int(p.Amount)
	case KindQtyBasedPriceOverride:
		e.FieldStart("required_qty")
		e.Int(p.RequiredQty)
		e.FieldStart("price")
		e.Int64(p.Price)
	case KindBuyXGetYFree:
		e.FieldStart("required_qty")
		e.Int(p.RequiredQty)
		e.FieldStart("free_qty")
		e.Int(p.FreeQty)
	}
	e.ObjEnd()
}

// Decode reads p from a JSON object. Unknown fields are skipped.
func (p *Promotion) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			p.ID, err = d.Str()
		case "type":
			var kind string
			kind, err = d.Str()
			p.Kind = Kind(kind)
		case "amount":
			p.Amount, err = d.Int()
		case "required_qty":
			p.RequiredQty, err = d.Int()
		case "price":
			p.Price, err = d.Int64()
		case "free_qty":
			p.FreeQty, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode promotion %q", key)
		}
		return nil
	})
}
