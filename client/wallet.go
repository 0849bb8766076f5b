package client

import (
	"context"
	"net/url"

	"gateflow/api/wallet"
	"gateflow/api/withdrawal"
)

// WalletAPI exposes the signed wallet endpoints of a Client.
type WalletAPI struct {
	client *Client
}

func (w WalletAPI) TotalBalance(ctx context.Context, req wallet.TotalBalanceRequest) (wallet.TotalBalance, error) {
	return Do[wallet.TotalBalance](ctx, w.client, "/wallet/total_balance", req)
}

func (w WalletAPI) DepositAddress(ctx context.Context, currency string) (wallet.DepositAddress, error) {
	return Do[wallet.DepositAddress](ctx, w.client, "/wallet/deposit_address", wallet.DepositAddressRequest{Currency: currency})
}

func (w WalletAPI) Withdrawals(ctx context.Context, req wallet.WithdrawalHistoryRequest) ([]withdrawal.Record, error) {
	return Do[[]withdrawal.Record](ctx, w.client, "/wallet/withdrawals", req)
}

// WithdrawalAPI exposes withdrawal submission and cancellation.
type WithdrawalAPI struct {
	client *Client
}

func (w WithdrawalAPI) Withdraw(ctx context.Context, req withdrawal.WithdrawRequest) (withdrawal.Record, error) {
	return Do[withdrawal.Record](ctx, w.client, "/withdrawals", req)
}

func (w WithdrawalAPI) Cancel(ctx context.Context, id string) (withdrawal.Record, error) {
	return Do[withdrawal.Record](ctx, w.client, "/withdrawals/"+url.PathEscape(id), withdrawal.CancelRequest{WithdrawalID: id})
}
