package channel

import (
	"context"
	"sync"

	"gateflow/logger"
	"gateflow/models"
)

type ChannelStats struct {
	RawSent       int64
	RawDropped    int64
	NormSent      int64
	NormDropped   int64
	StreamSent    int64
	StreamDropped int64
	ErrorsSent    int64
	ErrorsDropped int64
}

// Channels connects readers, the processor and the writers. Raw carries
// order book updates, Norm carries flattened batches for the Parquet writer
// and Stream, when enabled, carries the same batches for Kafka. Sends never
// block: a full buffer counts as a drop.
type Channels struct {
	Raw    chan models.OrderBookUpdate
	Norm   chan models.LevelBatch
	Stream chan models.LevelBatch
	Errors chan error

	stats      ChannelStats
	statsMutex sync.RWMutex
	closeOnce  sync.Once
	log        *logger.Log
}

func NewChannels(rawBufferSize, normBufferSize, errorBufferSize int) *Channels {
	log := logger.GetLogger()
	c := &Channels{
		Raw:    make(chan models.OrderBookUpdate, rawBufferSize),
		Norm:   make(chan models.LevelBatch, normBufferSize),
		Errors: make(chan error, errorBufferSize),
		log:    log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size":   rawBufferSize,
		"norm_buffer_size":  normBufferSize,
		"error_buffer_size": errorBufferSize,
	}).Info("pipeline channels initialized")

	return c
}

// EnableStream adds the Kafka fan-out channel. Call before any SendNorm.
func (c *Channels) EnableStream(bufferSize int) {
	c.Stream = make(chan models.LevelBatch, bufferSize)
}

func (c *Channels) Close() {
	c.closeOnce.Do(func() {
		close(c.Raw)
		close(c.Norm)
		if c.Stream != nil {
			close(c.Stream)
		}
		close(c.Errors)
		c.log.WithComponent("channels").Info("pipeline channels closed")
	})
}

func (c *Channels) update(fn func(s *ChannelStats)) {
	c.statsMutex.Lock()
	fn(&c.stats)
	c.statsMutex.Unlock()
}

func (c *Channels) SendRaw(ctx context.Context, msg models.OrderBookUpdate) bool {
	select {
	case c.Raw <- msg:
		c.update(func(s *ChannelStats) { s.RawSent++ })
		return true
	case <-ctx.Done():
		return false
	default:
		c.update(func(s *ChannelStats) { s.RawDropped++ })
		return false
	}
}

// Delivery reports which sinks accepted a normalized batch.
type Delivery struct {
	Norm bool
	// Stream is always false when the Kafka fan-out is not enabled.
	Stream bool
}

// Delivered reports whether at least one writer will see the batch.
func (d Delivery) Delivered() bool {
	return d.Norm || d.Stream
}

func (c *Channels) StreamEnabled() bool {
	return c.Stream != nil
}

// SendNorm hands batch to the Parquet writer and, if enabled, to Kafka.
// Each sink is tried on its own so a full Norm buffer does not hide a
// batch Kafka received. A send that finds room always wins over a
// cancelled ctx.
func (c *Channels) SendNorm(ctx context.Context, batch models.LevelBatch) Delivery {
	var d Delivery
	select {
	case c.Norm <- batch:
		c.update(func(s *ChannelStats) { s.NormSent++ })
		d.Norm = true
	default:
		if ctx.Err() == nil {
			c.update(func(s *ChannelStats) { s.NormDropped++ })
		}
	}

	if c.Stream != nil {
		select {
		case c.Stream <- batch:
			c.update(func(s *ChannelStats) { s.StreamSent++ })
			d.Stream = true
		default:
			if ctx.Err() == nil {
				c.update(func(s *ChannelStats) { s.StreamDropped++ })
			}
		}
	}
	return d
}

// SendError reports a non-fatal pipeline error.
func (c *Channels) SendError(err error) bool {
	if err == nil {
		return false
	}
	select {
	case c.Errors <- err:
		c.update(func(s *ChannelStats) { s.ErrorsSent++ })
		return true
	default:
		c.update(func(s *ChannelStats) { s.ErrorsDropped++ })
		return false
	}
}

func (c *Channels) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
