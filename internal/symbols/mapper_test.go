package symbols

import "testing"

func TestToGate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTCUSDT", "BTC_USDT"},
		{"btc-usdt", "BTC_USDT"},
		{"BTC/USDT", "BTC_USDT"},
		{"BTC_USDT", "BTC_USDT"},
		{"XBT-USDTM", "BTC_USDT"},
		{"ETHBTC", "ETH_BTC"},
		{"BTC-USDT-SWAP", "BTC_USDT"},
		{"SOLFDUSD", "SOL_FDUSD"},
		{"WEIRD", "WEIRD"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ToGate(tt.in); got != tt.want {
			t.Errorf("ToGate(%q)=%q want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromGate(t *testing.T) {
	if got := FromGate("btc_usdt"); got != "BTCUSDT" {
		t.Fatalf("FromGate = %q", got)
	}
}
