package spot

import (
	"github.com/shopspring/decimal"

	"gateflow/api"
)

// AccountsRequest lists spot balances. GET /spot/accounts (signed)
type AccountsRequest struct {
	Currency string `url:"currency,omitempty" json:"-"`
}

func (AccountsRequest) Endpoint() api.Endpoint[[]Account] {
	return api.Private[[]Account](api.MethodGet)
}

type Account struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	UpdateID  int64           `json:"update_id"`
}

func (a Account) Validate() error {
	return api.Required("currency", a.Currency)
}
