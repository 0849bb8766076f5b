package client

import (
	"context"
	"net/url"

	"gateflow/api/spot"
)

// SpotAPI exposes the spot market endpoints of a Client.
type SpotAPI struct {
	client *Client
}

// Currencies lists all currencies' details. GET /spot/currencies
func (s SpotAPI) Currencies(ctx context.Context) ([]spot.Currency, error) {
	return Do[[]spot.Currency](ctx, s.client, "/spot/currencies", spot.AllCurrenciesRequest{})
}

// Currency returns one currency, given as BTC or <currency>_<chain>.
func (s SpotAPI) Currency(ctx context.Context, name string) (spot.Currency, error) {
	return Do[spot.Currency](ctx, s.client, "/spot/currencies/"+url.PathEscape(name), spot.CurrencyRequest{Currency: name})
}

func (s SpotAPI) CurrencyPairs(ctx context.Context) ([]spot.CurrencyPair, error) {
	return Do[[]spot.CurrencyPair](ctx, s.client, "/spot/currency_pairs", spot.AllCurrencyPairsRequest{})
}

func (s SpotAPI) CurrencyPair(ctx context.Context, pair string) (spot.CurrencyPair, error) {
	return Do[spot.CurrencyPair](ctx, s.client, "/spot/currency_pairs/"+url.PathEscape(pair), spot.CurrencyPairRequest{CurrencyPair: pair})
}

// Tickers returns tickers for one pair, or for every pair when req.CurrencyPair is empty.
func (s SpotAPI) Tickers(ctx context.Context, req spot.TickersRequest) ([]spot.Ticker, error) {
	return Do[[]spot.Ticker](ctx, s.client, "/spot/tickers", req)
}

func (s SpotAPI) OrderBook(ctx context.Context, req spot.OrderBookRequest) (spot.OrderBook, error) {
	return Do[spot.OrderBook](ctx, s.client, "/spot/order_book", req)
}

// Accounts lists spot balances. Requires credentials.
func (s SpotAPI) Accounts(ctx context.Context, req spot.AccountsRequest) ([]spot.Account, error) {
	return Do[[]spot.Account](ctx, s.client, "/spot/accounts", req)
}
