package spot

import (
	"github.com/shopspring/decimal"

	"gateflow/api"
)

// TickersRequest retrieves ticker information. GET /spot/tickers
//
// All pairs are returned when CurrencyPair is empty.
type TickersRequest struct {
	CurrencyPair string `url:"currency_pair,omitempty" json:"-"`
	// utc0, utc8 or all
	Timezone string `url:"timezone,omitempty" json:"-"`
}

func (TickersRequest) Endpoint() api.Endpoint[[]Ticker] {
	return api.Public[[]Ticker]()
}

type Ticker struct {
	CurrencyPair     string           `json:"currency_pair"`
	Last             decimal.Decimal  `json:"last"`
	LowestAsk        api.MaybeDecimal `json:"lowest_ask"`
	HighestBid       api.MaybeDecimal `json:"highest_bid"`
	ChangePercentage api.MaybeDecimal `json:"change_percentage"`
	BaseVolume       api.MaybeDecimal `json:"base_volume"`
	QuoteVolume      api.MaybeDecimal `json:"quote_volume"`
	High24h          api.MaybeDecimal `json:"high_24h"`
	Low24h           api.MaybeDecimal `json:"low_24h"`
}

func (t Ticker) Validate() error {
	return api.Required("currency_pair", t.CurrencyPair)
}
