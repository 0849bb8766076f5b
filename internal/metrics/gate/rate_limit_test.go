package gatemetrics

import (
	"net/http"
	"testing"
	"time"

	"gateflow/internal/metrics"
	"gateflow/logger"
)

func TestParseRateLimit(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderRemaining, "150")
	header.Set(HeaderLimit, "200")
	header.Set(HeaderReset, "1700000000")

	rl, ok := ParseRateLimit(header)
	if !ok {
		t.Fatal("expected headers to parse")
	}
	if rl.Remaining != 150 || rl.Limit != 200 {
		t.Fatalf("unexpected limit: %+v", rl)
	}
	if !rl.Reset.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected reset: %v", rl.Reset)
	}
	if rl.Used() != 0.25 {
		t.Fatalf("used = %v", rl.Used())
	}
}

func TestParseRateLimitMilliseconds(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderRemaining, "1")
	header.Set(HeaderLimit, "10")
	header.Set(HeaderReset, "1700000000123")

	rl, ok := ParseRateLimit(header)
	if !ok || !rl.Reset.Equal(time.UnixMilli(1700000000123)) {
		t.Fatalf("unexpected reset: %+v %v", rl, ok)
	}
}

func TestParseRateLimitMissing(t *testing.T) {
	header := http.Header{}
	header.Set(HeaderRemaining, "abc")
	header.Set(HeaderLimit, "10")
	if _, ok := ParseRateLimit(header); ok {
		t.Fatal("non-numeric header should not parse")
	}
	if _, ok := ParseRateLimit(http.Header{}); ok {
		t.Fatal("empty header should not parse")
	}
}

func TestReportRateLimitEmitsGauges(t *testing.T) {
	events := make(chan metrics.Metric, 3)
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) {
		events <- m
	})
	t.Cleanup(func() { metrics.UnregisterMetricHandler(id) })

	header := http.Header{}
	header.Set(HeaderRemaining, "9")
	header.Set(HeaderLimit, "10")

	if _, ok := ReportRateLimit(logger.GetLogger(), header, "gate_rest", "/spot/tickers"); !ok {
		t.Fatal("expected report")
	}

	select {
	case m := <-events:
		if m.Name != "rate_limit_remaining" || m.Fields["endpoint"] != "/spot/tickers" {
			t.Fatalf("unexpected metric: %+v", m)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("metric handler not invoked")
	}
}
