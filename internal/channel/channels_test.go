package channel

import (
	"context"
	"errors"
	"testing"

	"gateflow/models"
)

func TestChannelsStats(t *testing.T) {
	ch := NewChannels(1, 1, 1)
	ctx := context.Background()

	if !ch.SendRaw(ctx, models.OrderBookUpdate{Exchange: "gate"}) {
		t.Fatal("first raw send should succeed")
	}
	if ch.SendRaw(ctx, models.OrderBookUpdate{Exchange: "gate"}) {
		t.Fatal("second raw send should be dropped")
	}
	if !ch.SendNorm(ctx, models.LevelBatch{BatchID: "a"}).Norm {
		t.Fatal("first norm send should succeed")
	}
	if ch.SendNorm(ctx, models.LevelBatch{BatchID: "b"}).Delivered() {
		t.Fatal("second norm send should be dropped")
	}
	ch.SendError(errors.New("boom"))
	ch.SendError(errors.New("boom again"))

	stats := ch.GetStats()
	if stats.RawSent != 1 || stats.RawDropped != 1 || stats.NormSent != 1 || stats.NormDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ErrorsSent != 1 || stats.ErrorsDropped != 1 {
		t.Fatalf("unexpected error stats: %+v", stats)
	}
	if stats.StreamSent != 0 {
		t.Fatalf("stream disabled but counted: %+v", stats)
	}
}

func TestSendNormFansOutToStream(t *testing.T) {
	ch := NewChannels(1, 2, 1)
	ch.EnableStream(2)

	if d := ch.SendNorm(context.Background(), models.LevelBatch{BatchID: "x"}); !d.Norm || !d.Stream {
		t.Fatalf("expected both sinks to accept, got %+v", d)
	}

	if got := (<-ch.Norm).BatchID; got != "x" {
		t.Fatalf("norm got %q", got)
	}
	if got := (<-ch.Stream).BatchID; got != "x" {
		t.Fatalf("stream got %q", got)
	}
	if s := ch.GetStats(); s.StreamSent != 1 {
		t.Fatalf("unexpected stream stats: %+v", s)
	}
}

func TestSendNormReportsEachSink(t *testing.T) {
	ch := NewChannels(1, 1, 1)
	ch.EnableStream(2)
	ctx := context.Background()

	ch.SendNorm(ctx, models.LevelBatch{BatchID: "a"})
	d := ch.SendNorm(ctx, models.LevelBatch{BatchID: "b"})
	if d.Norm || !d.Stream {
		t.Fatalf("expected norm full and stream accepted, got %+v", d)
	}
	if !d.Delivered() {
		t.Fatal("batch taken by stream should count as delivered")
	}

	s := ch.GetStats()
	if s.NormSent != 1 || s.NormDropped != 1 || s.StreamSent != 2 || s.StreamDropped != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestSendNormPrefersRoomOverCancelledContext(t *testing.T) {
	ch := NewChannels(1, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !ch.SendNorm(ctx, models.LevelBatch{BatchID: "late"}).Norm {
		t.Fatal("buffered send should succeed after cancellation")
	}
	if ch.SendNorm(ctx, models.LevelBatch{BatchID: "later"}).Norm {
		t.Fatal("full channel cannot accept")
	}
	if s := ch.GetStats(); s.NormDropped != 0 {
		t.Fatalf("drops after cancellation should not be counted: %+v", s)
	}
}

func TestSendRawCancelledContext(t *testing.T) {
	ch := NewChannels(0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ch.SendRaw(ctx, models.OrderBookUpdate{}) {
		t.Fatal("send on unbuffered channel with cancelled context should fail")
	}
}

func TestChannelsCloseTwice(t *testing.T) {
	ch := NewChannels(1, 1, 1)
	ch.EnableStream(1)
	ch.Close()
	ch.Close()
}
