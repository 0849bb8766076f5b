// Package spot declares the Gate spot market endpoints.
package spot

import "gateflow/api"

// AllCurrenciesRequest lists every currency. GET /spot/currencies
type AllCurrenciesRequest struct{}

func (AllCurrenciesRequest) Endpoint() api.Endpoint[[]Currency] {
	return api.Public[[]Currency]()
}

// CurrencyRequest fetches one currency. GET /spot/currencies/{currency}
//
// Currency is either a bare name such as BTC or <currency>_<chain> such as HT_ETH.
type CurrencyRequest struct {
	Currency string `url:"-" json:"-"`
}

func (CurrencyRequest) Endpoint() api.Endpoint[Currency] {
	return api.Public[Currency]()
}

// Currency describes the trading and transfer status of a currency.
type Currency struct {
	Currency         string `json:"currency"`
	Delisted         bool   `json:"delisted"`
	WithdrawDisabled bool   `json:"withdraw_disabled"`
	WithdrawDelayed  bool   `json:"withdraw_delayed"`
	DepositDisabled  bool   `json:"deposit_disabled"`
	TradeDisabled    bool   `json:"trade_disabled"`
	// Only set for fixed rate currencies.
	FixedRate api.MaybeDecimal `json:"fixed_rate"`
	Chain     string           `json:"chain"`
}

func (c Currency) Validate() error {
	return api.Required("currency", c.Currency)
}
