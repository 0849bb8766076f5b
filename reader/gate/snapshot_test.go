package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gateflow/client"
	appconfig "gateflow/config"
	"gateflow/internal/channel"
	"gateflow/internal/metrics"
	"gateflow/models"
)

const restOrderBook = `{"id":123456,"current":1623898993123,"update":1623898993121,"asks":[["1.52","1.151"],["1.53","1.218"]],"bids":[["1.17","201.863"],["1.16","153.1"]]}`

func snapshotConfig(pairs ...string) *appconfig.Config {
	return &appconfig.Config{
		API: appconfig.APIConfig{RateLimit: appconfig.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10}},
		Reader: appconfig.ReaderConfig{Snapshot: appconfig.SnapshotConfig{
			Enabled:  true,
			Pairs:    pairs,
			Interval: 50 * time.Millisecond,
			Limit:    10,
		}},
	}
}

func TestSnapshotPollerFetch(t *testing.T) {
	queries := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/spot/order_book" {
			http.NotFound(w, r)
			return
		}
		select {
		case queries <- r.URL.RawQuery:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(restOrderBook))
	}))
	defer srv.Close()

	c, err := client.New(client.Options{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ch := channel.NewChannels(4, 4, 4)
	p := NewSnapshotPoller(snapshotConfig("ETHUSDT"), c, ch)
	p.ctx = context.Background()

	if wait := p.fetch("ETH_USDT", 10); wait != 0 {
		t.Fatalf("unexpected backoff %s", wait)
	}

	q := <-queries
	if q != "currency_pair=ETH_USDT&limit=10&with_id=true" {
		t.Fatalf("unexpected query %q", q)
	}

	select {
	case update := <-ch.Raw:
		if update.Source != "rest" || update.Exchange != "gate" {
			t.Fatalf("unexpected update: %+v", update)
		}
		snap := update.Snapshot
		if snap.CurrencyPair != "ETH_USDT" || snap.LastUpdateID != 123456 || len(snap.Bids) != 2 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
		if snap.Asks[0].Price.String() != "1.52" {
			t.Fatalf("unexpected best ask %s", snap.Asks[0].Price)
		}
	default:
		t.Fatal("snapshot not forwarded")
	}
}

func TestSnapshotPollerRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"label":"TOO_MANY_REQUESTS","message":"slow down"}`))
	}))
	defer srv.Close()

	c, err := client.New(client.Options{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ch := channel.NewChannels(4, 4, 4)
	p := NewSnapshotPoller(snapshotConfig("ETH_USDT"), c, ch)
	p.ctx = context.Background()

	if wait := p.fetch("ETH_USDT", 10); wait != 3*time.Second {
		t.Fatalf("expected Retry-After backoff, got %s", wait)
	}
	if len(ch.Errors) != 0 || len(ch.Raw) != 0 {
		t.Fatalf("rate limiting should only back off")
	}
}

func TestSnapshotPollerForwardRegression(t *testing.T) {
	var got []metrics.Metric
	id := metrics.RegisterMetricHandler(func(m metrics.Metric) {
		if m.Name == "sequence_regression" {
			got = append(got, m)
		}
	})
	defer metrics.UnregisterMetricHandler(id)

	ch := channel.NewChannels(4, 4, 4)
	p := NewSnapshotPoller(snapshotConfig("BTC_USDT"), nil, ch)
	p.ctx = context.Background()

	for _, id := range []uint64{10, 15, 12} {
		if !p.Forward(models.OrderBookSnapshot{CurrencyPair: "BTC_USDT", LastUpdateID: id}) {
			t.Fatalf("forward %d failed", id)
		}
	}
	want := []models.SequenceStatus{models.SequenceFirst, models.SequenceGap, models.SequenceRegression}
	for i, status := range want {
		if u := <-ch.Raw; u.Sequence != status {
			t.Fatalf("update %d: status %v, want %v", i, u.Sequence, status)
		}
	}
	if len(got) != 1 {
		t.Fatalf("expected one regression metric, got %d", len(got))
	}
}

func TestSnapshotPollerForwardDropsWhenFull(t *testing.T) {
	ch := channel.NewChannels(1, 1, 1)
	p := NewSnapshotPoller(snapshotConfig("BTC_USDT"), nil, ch)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.ctx = ctx

	p.Forward(models.OrderBookSnapshot{CurrencyPair: "BTC_USDT", LastUpdateID: 1})
	if p.Forward(models.OrderBookSnapshot{CurrencyPair: "BTC_USDT", LastUpdateID: 2}) {
		t.Fatal("expected second snapshot to be dropped")
	}
}

func TestSnapshotPollerStartAfterDisabled(t *testing.T) {
	cfg := snapshotConfig()
	cfg.Reader.Snapshot.Enabled = false
	p := NewSnapshotPoller(cfg, nil, channel.NewChannels(1, 1, 1))
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected error when disabled")
	}

	cfg.Reader.Snapshot.Enabled = true
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start after enabling: %v", err)
	}
	p.Stop()
}

func TestSnapshotPollerStopWithLiveContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(restOrderBook))
	}))
	defer srv.Close()
	c, err := client.New(client.Options{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	p := NewSnapshotPoller(snapshotConfig("BTC_USDT"), c, channel.NewChannels(64, 1, 1))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while the parent context was live")
	}
}
