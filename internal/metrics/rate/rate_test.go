package rate

import (
	"testing"

	"gateflow/internal/metrics"
	"gateflow/logger"
)

func TestReportRateLimitExceeded(t *testing.T) {
	events := make(chan metrics.Metric, 1)
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) { events <- m })
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })

	ReportRateLimitExceeded(logger.GetLogger(), "Gate", "BTC_USDT", "", "rest")

	m := <-events
	if m.Component != "gate_rest" || m.Name != "rate_limit_exceeded" {
		t.Fatalf("unexpected metric: %+v", m)
	}
	if _, ok := m.Fields["ip"]; ok {
		t.Fatalf("empty ip should be omitted: %v", m.Fields)
	}
}

func TestReportIPBan(t *testing.T) {
	ReportIPBan(nil, "gate", "BTC_USDT", "127.0.0.1", "ws")
}

func TestDetectLimit(t *testing.T) {
	cases := []struct {
		exchange string
		msg      string
		rate     bool
		ban      bool
	}{
		{"gate", "TOO_MANY_REQUESTS", true, false},
		{"gate", "Request Rate limit Exceeded (311)", true, false},
		{"gate", "IP forbidden", false, true},
		{"gate", "INVALID_CURRENCY", false, false},
		{"unknown", "Too many requests", true, false},
		{"unknown", "hello world", false, false},
	}
	for _, c := range cases {
		rl, ban := detectLimit(c.exchange, c.msg)
		if rl != c.rate {
			t.Errorf("%s %q: expected rateLimit %v got %v", c.exchange, c.msg, c.rate, rl)
		}
		if ban != c.ban {
			t.Errorf("%s %q: expected ipBan %v got %v", c.exchange, c.msg, c.ban, ban)
		}
	}
}

func TestReportLimitFromMessage(t *testing.T) {
	if ReportLimitFromMessage(nil, "gate", "", "", "ws", "invalid argument") {
		t.Fatal("unrelated message should not be reported")
	}
	if !ReportLimitFromMessage(nil, "gate", "", "", "ws", "too many requests") {
		t.Fatal("rate limit message should be reported")
	}
}
