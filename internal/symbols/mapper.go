package symbols

import "strings"

// quoteAssets are tried longest first when a symbol has no separator.
var quoteAssets = []string{"FDUSD", "USDT", "USDC", "TUSD", "BUSD", "USD", "BTC", "ETH", "EUR", "TRY"}

// ToGate converts common symbol spellings to Gate's BASE_QUOTE form.
//
//	BTCUSDT   -> BTC_USDT
//	btc-usdt  -> BTC_USDT
//	BTC/USDT  -> BTC_USDT
//	XBT-USDTM -> BTC_USDT
//
// Symbols whose quote asset cannot be recognised are returned upper-cased
// and otherwise unchanged.
func ToGate(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return sym
	}

	for _, sep := range []string{"-", "/"} {
		sym = strings.ReplaceAll(sym, sep, "_")
	}
	sym = strings.TrimSuffix(sym, "_SWAP")

	if base, quote, ok := strings.Cut(sym, "_"); ok {
		quote = strings.TrimSuffix(quote, "M")
		if !isQuote(quote) {
			quote = sym[len(base)+1:]
		}
		return normaliseBase(base) + "_" + quote
	}

	for _, quote := range quoteAssets {
		if strings.HasSuffix(sym, quote) && len(sym) > len(quote) {
			return normaliseBase(strings.TrimSuffix(sym, quote)) + "_" + quote
		}
	}
	return sym
}

// FromGate converts BTC_USDT to the separator-free BTCUSDT used in records.
func FromGate(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(pair)), "_", "")
}

func isQuote(s string) bool {
	for _, q := range quoteAssets {
		if s == q {
			return true
		}
	}
	return false
}

func normaliseBase(base string) string {
	if base == "XBT" {
		return "BTC"
	}
	return base
}
