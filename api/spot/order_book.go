package spot

import (
	"gateflow/api"
	"gateflow/models"
)

// OrderBookRequest fetches a depth snapshot. GET /spot/order_book
type OrderBookRequest struct {
	CurrencyPair string `url:"currency_pair" json:"-"`
	// Price aggregation precision, "0" for none.
	Interval string `url:"interval,omitempty" json:"-"`
	Limit    int    `url:"limit,omitempty" json:"-"`
	WithID   bool   `url:"with_id,omitempty" json:"-"`
}

func (OrderBookRequest) Endpoint() api.Endpoint[OrderBook] {
	return api.Public[OrderBook]()
}

// OrderBook is the REST depth snapshot. ID is only populated when WithID was set.
type OrderBook struct {
	ID      uint64              `json:"id"`
	Current int64               `json:"current"`
	Update  int64               `json:"update"`
	Asks    []models.PriceLevel `json:"asks"`
	Bids    []models.PriceLevel `json:"bids"`
}

// Snapshot converts the REST response to the model shared with the stream channel.
func (b OrderBook) Snapshot(pair string) models.OrderBookSnapshot {
	return models.OrderBookSnapshot{
		UpdateTimeMs: b.Update,
		LastUpdateID: b.ID,
		CurrencyPair: pair,
		Bids:         b.Bids,
		Asks:         b.Asks,
	}
}
