package processor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	appconfig "gateflow/config"
	"gateflow/internal/channel"
	"gateflow/models"
)

func minimalConfig() *appconfig.Config {
	return &appconfig.Config{
		Processor: appconfig.ProcessorConfig{
			MaxWorkers:   1,
			BatchSize:    4,
			BatchTimeout: 20 * time.Millisecond,
		},
	}
}

func level(price, qty string) models.PriceLevel {
	return models.PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func sampleUpdate(id uint64) models.OrderBookUpdate {
	return models.OrderBookUpdate{
		Exchange: "gate",
		Market:   "spot",
		Source:   "ws",
		Snapshot: models.OrderBookSnapshot{
			UpdateTimeMs: 1606295412213,
			LastUpdateID: id,
			CurrencyPair: "BTC_USDT",
			Bids:         []models.PriceLevel{level("19079.55", "0.0195"), level("19079.07", "0")},
			Asks:         []models.PriceLevel{level("19080.24", "0.1638")},
		},
		Sequence:   models.SequenceContiguous,
		ReceivedAt: time.UnixMilli(1606295412300),
	}
}

func TestFlatten(t *testing.T) {
	records := Flatten(sampleUpdate(48791820))
	if len(records) != 2 {
		t.Fatalf("expected zero quantity level to be skipped, got %d records", len(records))
	}

	bid := records[0]
	if bid.Symbol != "BTCUSDT" || bid.Side != "bid" || bid.Level != 1 {
		t.Fatalf("unexpected bid record: %+v", bid)
	}
	if bid.Price != "19079.55" || bid.Quantity != "0.0195" {
		t.Fatalf("prices must keep their decimal text: %+v", bid)
	}
	if bid.Timestamp != 1606295412213 || bid.ReceivedTime != 1606295412300 || bid.LastUpdateID != 48791820 {
		t.Fatalf("unexpected timing fields: %+v", bid)
	}
	if bid.Sequence != "contiguous" {
		t.Fatalf("unexpected sequence %q", bid.Sequence)
	}

	ask := records[1]
	if ask.Side != "ask" || ask.Level != 1 || ask.Price != "19080.24" {
		t.Fatalf("unexpected ask record: %+v", ask)
	}
}

func TestFlattenerBatchesBySize(t *testing.T) {
	ch := channel.NewChannels(4, 4, 4)
	f := NewFlattener(minimalConfig(), ch)
	f.ctx = context.Background()

	f.Process(sampleUpdate(1))
	if len(ch.Norm) != 0 {
		t.Fatalf("batch flushed before reaching its size")
	}
	f.Process(sampleUpdate(2))

	select {
	case batch := <-ch.Norm:
		if batch.RecordCount != 4 || len(batch.Entries) != 4 || batch.Symbol != "BTCUSDT" {
			t.Fatalf("unexpected batch: %+v", batch)
		}
		if batch.BatchID == "" {
			t.Fatal("batch id not set")
		}
		if batch.Entries[2].LastUpdateID != 2 {
			t.Fatalf("entries out of order: %+v", batch.Entries)
		}
	default:
		t.Fatal("expected a full batch")
	}

	stats := f.Stats()
	if stats.UpdatesProcessed != 2 || stats.LevelsProcessed != 4 || stats.BatchesEmitted != 1 || stats.ActiveBatches != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestFlattenerFlushesOnTimeout(t *testing.T) {
	cfg := minimalConfig()
	cfg.Processor.BatchSize = 100
	ch := channel.NewChannels(4, 4, 4)
	f := NewFlattener(cfg, ch)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}

	ch.Raw <- sampleUpdate(7)

	select {
	case batch := <-ch.Norm:
		if batch.RecordCount != 2 {
			t.Fatalf("unexpected batch: %+v", batch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch was not flushed on timeout")
	}

	cancel()
	f.Stop()
}

func TestFlattenerStopFlushesPending(t *testing.T) {
	cfg := minimalConfig()
	cfg.Processor.BatchSize = 100
	cfg.Processor.BatchTimeout = time.Hour
	ch := channel.NewChannels(4, 4, 4)
	f := NewFlattener(cfg, ch)

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.Process(sampleUpdate(9))
	cancel()
	f.Stop()

	if len(ch.Norm) != 1 {
		t.Fatalf("expected pending batch to be flushed on stop, got %d", len(ch.Norm))
	}
}

func TestFlattenerDropsWhenNormFull(t *testing.T) {
	cfg := minimalConfig()
	cfg.Processor.BatchSize = 1
	ch := channel.NewChannels(1, 1, 1)
	f := NewFlattener(cfg, ch)
	f.ctx = context.Background()

	f.Process(sampleUpdate(1))
	f.Process(sampleUpdate(2))

	// The first batch fills the channel, the second has nowhere to go.
	if got := f.Stats().ErrorsCount; got != 1 {
		t.Fatalf("expected dropped batches to be counted, got %d", got)
	}
}

func TestFlattenerCountsDropsPerSink(t *testing.T) {
	cfg := minimalConfig()
	cfg.Processor.BatchSize = 1
	ch := channel.NewChannels(1, 1, 1)
	ch.EnableStream(4)
	f := NewFlattener(cfg, ch)
	f.ctx = context.Background()

	f.Process(sampleUpdate(1))
	f.Process(sampleUpdate(2))

	// Norm is full after the first batch but Kafka still takes the second.
	stats := f.Stats()
	if stats.BatchesEmitted != 2 {
		t.Fatalf("batch delivered to stream should count as emitted, got %d", stats.BatchesEmitted)
	}
	if stats.ErrorsCount != 1 {
		t.Fatalf("expected only the norm drop, got %d errors", stats.ErrorsCount)
	}
	if len(ch.Stream) != 2 {
		t.Fatalf("expected both batches on the stream, got %d", len(ch.Stream))
	}
}

func TestFlattenerStopDrainsRaw(t *testing.T) {
	cfg := minimalConfig()
	cfg.Processor.BatchSize = 100
	cfg.Processor.BatchTimeout = time.Hour
	ch := channel.NewChannels(4, 4, 4)
	f := NewFlattener(cfg, ch)

	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ch.Raw <- sampleUpdate(11)
	ch.Raw <- sampleUpdate(12)

	done := make(chan struct{})
	go func() {
		f.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return with a live parent context")
	}

	if len(ch.Norm) != 1 {
		t.Fatalf("expected buffered updates to reach one batch, got %d", len(ch.Norm))
	}
	if batch := <-ch.Norm; batch.RecordCount != 4 {
		t.Fatalf("expected both updates in the batch, got %d records", batch.RecordCount)
	}
}
