// Package wallet declares the signed wallet endpoints.
package wallet

import (
	"gateflow/api"
	"gateflow/api/withdrawal"
)

// TotalBalanceRequest returns the valuation of all accounts. GET /wallet/total_balance (signed)
type TotalBalanceRequest struct {
	// Valuation currency, USDT when empty.
	Currency string `url:"currency,omitempty" json:"-"`
}

func (TotalBalanceRequest) Endpoint() api.Endpoint[TotalBalance] {
	return api.Private[TotalBalance](api.MethodGet)
}

type AccountBalance struct {
	Currency      string           `json:"currency"`
	Amount        api.MaybeDecimal `json:"amount"`
	UnrealisedPnl api.MaybeDecimal `json:"unrealised_pnl"`
	Borrowed      api.MaybeDecimal `json:"borrowed"`
}

type TotalBalance struct {
	Total AccountBalance `json:"total"`
	// Keyed by account type: spot, margin, futures, delivery, finance...
	Details map[string]AccountBalance `json:"details"`
}

func (b TotalBalance) Validate() error {
	return api.Required("total.currency", b.Total.Currency)
}

// DepositAddressRequest GET /wallet/deposit_address (signed)
type DepositAddressRequest struct {
	Currency string `url:"currency" json:"-"`
}

func (DepositAddressRequest) Endpoint() api.Endpoint[DepositAddress] {
	return api.Private[DepositAddress](api.MethodGet)
}

type ChainAddress struct {
	Chain        string `json:"chain"`
	Address      string `json:"address"`
	PaymentID    string `json:"payment_id"`
	PaymentName  string `json:"payment_name"`
	ObtainFailed int    `json:"obtain_failed"`
}

type DepositAddress struct {
	Currency            string         `json:"currency"`
	Address             string         `json:"address"`
	MultichainAddresses []ChainAddress `json:"multichain_addresses"`
}

func (a DepositAddress) Validate() error {
	return api.Required("currency", a.Currency)
}

// WithdrawalHistoryRequest GET /wallet/withdrawals (signed)
//
// From and To are unix seconds; the server caps the range at 30 days.
type WithdrawalHistoryRequest struct {
	Currency string `url:"currency,omitempty" json:"-"`
	From     int64  `url:"from,omitempty" json:"-"`
	To       int64  `url:"to,omitempty" json:"-"`
	Limit    int    `url:"limit,omitempty" json:"-"`
	Offset   int    `url:"offset,omitempty" json:"-"`
}

func (WithdrawalHistoryRequest) Endpoint() api.Endpoint[[]withdrawal.Record] {
	return api.Private[[]withdrawal.Record](api.MethodGet)
}
