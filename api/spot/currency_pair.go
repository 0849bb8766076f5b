package spot

import "gateflow/api"

// AllCurrencyPairsRequest lists every supported pair. GET /spot/currency_pairs
type AllCurrencyPairsRequest struct{}

func (AllCurrencyPairsRequest) Endpoint() api.Endpoint[[]CurrencyPair] {
	return api.Public[[]CurrencyPair]()
}

// CurrencyPairRequest fetches one pair. GET /spot/currency_pairs/{currency_pair}
type CurrencyPairRequest struct {
	CurrencyPair string `url:"-" json:"-"`
}

func (CurrencyPairRequest) Endpoint() api.Endpoint[CurrencyPair] {
	return api.Public[CurrencyPair]()
}

// TradeStatus of a currency pair.
type TradeStatus string

const (
	TradeStatusUntradable TradeStatus = "untradable"
	TradeStatusBuyable    TradeStatus = "buyable"
	TradeStatusSellable   TradeStatus = "sellable"
	TradeStatusTradable   TradeStatus = "tradable"
)

type CurrencyPair struct {
	ID              string           `json:"id"`
	Base            string           `json:"base"`
	Quote           string           `json:"quote"`
	Fee             api.MaybeDecimal `json:"fee"`
	MinBaseAmount   api.MaybeDecimal `json:"min_base_amount"`
	MinQuoteAmount  api.MaybeDecimal `json:"min_quote_amount"`
	MaxBaseAmount   api.MaybeDecimal `json:"max_base_amount"`
	MaxQuoteAmount  api.MaybeDecimal `json:"max_quote_amount"`
	AmountPrecision int              `json:"amount_precision"`
	Precision       int              `json:"precision"`
	TradeStatus     TradeStatus      `json:"trade_status"`
	SellStart       int64            `json:"sell_start"`
	BuyStart        int64            `json:"buy_start"`
}

func (p CurrencyPair) Validate() error {
	return api.Required("id", p.ID)
}
