package api

import "github.com/shopspring/decimal"

// MaybeDecimal is a decimal that Gate encodes as "" or null when unset.
type MaybeDecimal struct {
	decimal.NullDecimal
}

func (d *MaybeDecimal) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `""`, "null":
		d.Valid = false
		d.Decimal = decimal.Zero
		return nil
	}
	return d.NullDecimal.UnmarshalJSON(b)
}
