// Package withdrawal declares the signed withdrawal endpoints.
package withdrawal

import (
	"github.com/shopspring/decimal"

	"gateflow/api"
)

// WithdrawRequest submits a withdrawal. POST /withdrawals (signed)
type WithdrawRequest struct {
	// Client supplied identifier, at most 32 characters.
	WithdrawOrderID string          `json:"withdraw_order_id,omitempty" url:"-"`
	Amount          decimal.Decimal `json:"amount" url:"-"`
	Currency        string          `json:"currency" url:"-"`
	Address         string          `json:"address,omitempty" url:"-"`
	Memo            string          `json:"memo,omitempty" url:"-"`
	Chain           string          `json:"chain" url:"-"`
}

func (WithdrawRequest) Endpoint() api.Endpoint[Record] {
	return api.Private[Record](api.MethodPost)
}

// CancelRequest cancels a pending withdrawal. DELETE /withdrawals/{withdrawal_id} (signed)
type CancelRequest struct {
	WithdrawalID string `url:"-" json:"-"`
}

func (CancelRequest) Endpoint() api.Endpoint[Record] {
	return api.Private[Record](api.MethodDelete)
}

// Status of a withdrawal record.
type Status string

const (
	StatusDone    Status = "DONE"
	StatusCancel  Status = "CANCEL"
	StatusRequest Status = "REQUEST"
	StatusManual  Status = "MANUAL"
	StatusBCode   Status = "BCODE"
	StatusExtpend Status = "EXTPEND"
	StatusFail    Status = "FAIL"
	StatusInvalid Status = "INVALID"
	StatusVerify  Status = "VERIFY"
	StatusProces  Status = "PROCES"
	StatusPend    Status = "PEND"
	StatusDmove   Status = "DMOVE"
)

type Record struct {
	ID              string           `json:"id"`
	TxID            string           `json:"txid"`
	WithdrawOrderID string           `json:"withdraw_order_id"`
	Timestamp       string           `json:"timestamp"`
	Amount          decimal.Decimal  `json:"amount"`
	Fee             api.MaybeDecimal `json:"fee"`
	Currency        string           `json:"currency"`
	Address         string           `json:"address"`
	Memo            string           `json:"memo"`
	Status          Status           `json:"status"`
	Chain           string           `json:"chain"`
}

func (r Record) Validate() error {
	if err := api.Required("id", r.ID); err != nil {
		return err
	}
	return api.Required("currency", r.Currency)
}
