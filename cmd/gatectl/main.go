// Command gatectl queries the Gate REST API from the command line.
//
//	gatectl [-config path] <command> [args]
//
// Public commands: currencies, currency <name>, pairs, pair <pair>,
// tickers [pair], orderbook <pair>. Signed commands: accounts [currency],
// balance [currency], deposit-address <currency>, withdrawals [currency].
// Credentials come from GATE_API_KEY/GATE_API_SECRET or the CCX_GATE_API_*
// variables, optionally via a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gateflow/api/spot"
	"gateflow/api/wallet"
	"gateflow/client"
	"gateflow/config"
	"gateflow/internal/symbols"
	"gateflow/logger"
)

var errUsage = errors.New("usage")

func main() {
	log := logger.GetLogger()
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "", "Optional path to configuration file")
	timeout := flag.Duration("timeout", 15*time.Second, "Request timeout")
	limit := flag.Int("limit", 10, "Order book depth for the orderbook command")
	flag.Usage = usage
	flag.Parse()

	if err := log.Configure("warn", "text", "stderr", 0); err != nil {
		log.WithError(err).Warn("failed to configure logger")
	}

	c, err := newClient(*configPath, *timeout)
	if err != nil {
		log.WithError(err).Error("failed to create gate client")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := run(ctx, c, flag.Args(), *limit)
	if errors.Is(err, errUsage) {
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).Error("request failed")
		os.Exit(1)
	}
	if err := printJSON(os.Stdout, result); err != nil {
		log.WithError(err).Error("failed to print result")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: gatectl [flags] <command> [args]

commands:
  currencies                 list all currencies
  currency <name>            show one currency
  pairs                      list all currency pairs
  pair <pair>                show one currency pair
  tickers [pair]             show tickers, all pairs when none is given
  orderbook <pair>           show the order book (-limit levels)
  accounts [currency]        spot balances (signed)
  balance [currency]         total balance valued in currency (signed)
  deposit-address <currency> deposit address (signed)
  withdrawals [currency]     withdrawal history (signed)

flags:
`)
	flag.PrintDefaults()
}

// newClient uses the config file when one is given and the environment otherwise.
func newClient(path string, timeout time.Duration) (*client.Client, error) {
	if path != "" {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if cfg.API.Timeout == 0 {
			cfg.API.Timeout = timeout
		}
		return client.NewFromConfig(cfg)
	}

	key, secret, proxy := config.APIFromEnv()
	opts := client.Options{Timeout: timeout, Proxy: proxy}
	if key != "" || secret != "" {
		signer, err := client.NewHMACSigner(client.Credential{Key: key, Secret: secret})
		if err != nil {
			return nil, err
		}
		opts.Signer = signer
	}
	return client.New(opts)
}

func run(ctx context.Context, c *client.Client, args []string, limit int) (any, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	cmd, rest := args[0], args[1:]
	arg := func() string {
		if len(rest) > 0 {
			return rest[0]
		}
		return ""
	}

	switch cmd {
	case "currencies":
		return c.Spot().Currencies(ctx)
	case "currency":
		if arg() == "" {
			return nil, errUsage
		}
		return c.Spot().Currency(ctx, arg())
	case "pairs":
		return c.Spot().CurrencyPairs(ctx)
	case "pair":
		if arg() == "" {
			return nil, errUsage
		}
		return c.Spot().CurrencyPair(ctx, symbols.ToGate(arg()))
	case "tickers":
		req := spot.TickersRequest{}
		if arg() != "" {
			req.CurrencyPair = symbols.ToGate(arg())
		}
		return c.Spot().Tickers(ctx, req)
	case "orderbook":
		if arg() == "" {
			return nil, errUsage
		}
		return c.Spot().OrderBook(ctx, spot.OrderBookRequest{CurrencyPair: symbols.ToGate(arg()), Limit: limit, WithID: true})
	case "accounts":
		return c.Spot().Accounts(ctx, spot.AccountsRequest{Currency: arg()})
	case "balance":
		return c.Wallet().TotalBalance(ctx, wallet.TotalBalanceRequest{Currency: arg()})
	case "deposit-address":
		if arg() == "" {
			return nil, errUsage
		}
		return c.Wallet().DepositAddress(ctx, arg())
	case "withdrawals":
		return c.Wallet().Withdrawals(ctx, wallet.WithdrawalHistoryRequest{Currency: arg()})
	default:
		return nil, errUsage
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
