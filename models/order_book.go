package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceLevel is one [price, quantity] entry of an order book side. Gate sends
// both numbers as strings to keep full precision.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (l *PriceLevel) UnmarshalJSON(b []byte) error {
	var pair []decimal.Decimal
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("price level has %d elements, want [price, quantity]", len(pair))
	}
	l.Price, l.Quantity = pair[0], pair[1]
	return nil
}

func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price.String(), l.Quantity.String()})
}

// OrderBookSnapshot is the payload of a spot.order_book update. Levels are
// kept in the order the server delivered them.
type OrderBookSnapshot struct {
	UpdateTimeMs int64
	LastUpdateID uint64
	CurrencyPair string
	Bids         []PriceLevel
	Asks         []PriceLevel
}

type orderBookWire struct {
	T            *int64            `json:"t"`
	LastUpdateID *uint64           `json:"lastUpdateId"`
	S            *string           `json:"s"`
	Bids         []json.RawMessage `json:"bids"`
	Asks         []json.RawMessage `json:"asks"`
}

var errRequired = errors.New("field is required")

func (s *OrderBookSnapshot) UnmarshalJSON(b []byte) error {
	var w orderBookWire
	if err := json.Unmarshal(b, &w); err != nil {
		return decodeErrorAt("", err)
	}
	switch {
	case w.T == nil:
		return &DecodeError{Path: "t", Err: errRequired}
	case w.LastUpdateID == nil:
		return &DecodeError{Path: "lastUpdateId", Err: errRequired}
	case w.S == nil:
		return &DecodeError{Path: "s", Err: errRequired}
	case w.Bids == nil:
		return &DecodeError{Path: "bids", Err: errRequired}
	case w.Asks == nil:
		return &DecodeError{Path: "asks", Err: errRequired}
	}

	bids, err := decodeLevels("bids", w.Bids)
	if err != nil {
		return err
	}
	asks, err := decodeLevels("asks", w.Asks)
	if err != nil {
		return err
	}

	*s = OrderBookSnapshot{
		UpdateTimeMs: *w.T,
		LastUpdateID: *w.LastUpdateID,
		CurrencyPair: *w.S,
		Bids:         bids,
		Asks:         asks,
	}
	return nil
}

func decodeLevels(side string, raw []json.RawMessage) ([]PriceLevel, error) {
	levels := make([]PriceLevel, len(raw))
	for i, r := range raw {
		if err := levels[i].UnmarshalJSON(r); err != nil {
			return nil, decodeErrorAt(indexPath(side, i), err)
		}
	}
	return levels, nil
}
