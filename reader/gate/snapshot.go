package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"gateflow/api/spot"
	"gateflow/client"
	appconfig "gateflow/config"
	"gateflow/internal/channel"
	"gateflow/internal/metrics"
	"gateflow/internal/symbols"
	"gateflow/logger"
	"gateflow/models"
)

const snapshotComponent = "gate_snapshot"

// SnapshotPoller fetches REST order book snapshots on a fixed cadence and
// forwards them into the raw channel next to the stream updates.
type SnapshotPoller struct {
	config   *appconfig.Config
	client   *client.Client
	channels *channel.Channels
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
	pairs    []string
	limiter  *rate.Limiter
	now      func() time.Time

	trackersMu sync.Mutex
	trackers   map[string]*models.SequenceTracker
}

func NewSnapshotPoller(cfg *appconfig.Config, c *client.Client, ch *channel.Channels) *SnapshotPoller {
	rl := cfg.API.RateLimit
	rps := rl.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := rl.BurstSize
	if burst <= 0 {
		burst = 1
	}

	pairs := make([]string, 0, len(cfg.Reader.Snapshot.Pairs))
	for _, p := range cfg.Reader.Snapshot.Pairs {
		pairs = append(pairs, symbols.ToGate(p))
	}

	return &SnapshotPoller{
		config:   cfg,
		client:   c,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		pairs:    pairs,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		now:      time.Now,
		trackers: make(map[string]*models.SequenceTracker),
	}
}

func (p *SnapshotPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot poller already running")
	}
	cfg := p.config.Reader.Snapshot
	log := p.log.WithComponent(snapshotComponent).WithFields(logger.Fields{"operation": "Start"})
	if !cfg.Enabled {
		p.mu.Unlock()
		log.Warn("gate order book snapshots are disabled")
		return fmt.Errorf("gate order book snapshots are disabled")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	log.WithFields(logger.Fields{"pairs": p.pairs, "interval": cfg.Interval.String()}).Info("starting gate snapshot poller")
	for _, pair := range p.pairs {
		p.wg.Add(1)
		go p.fetchWorker(pair, cfg)
	}
	return nil
}

func (p *SnapshotPoller) Stop() {
	p.mu.Lock()
	p.running = false
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.log.WithComponent(snapshotComponent).Info("stopping gate snapshot poller")
	p.wg.Wait()
	p.log.WithComponent(snapshotComponent).Info("gate snapshot poller stopped")
}

// fetchWorker polls one pair, aligned to multiples of the interval.
func (p *SnapshotPoller) fetchWorker(pair string, cfg appconfig.SnapshotConfig) {
	defer p.wg.Done()
	log := p.log.WithComponent(snapshotComponent).WithFields(logger.Fields{"symbol": pair, "worker": "order_book_fetcher"})
	interval := cfg.Interval
	now := time.Now()
	next := now.Truncate(interval).Add(interval)
	timer := time.NewTimer(next.Sub(now))
	defer timer.Stop()
	for {
		select {
		case <-p.ctx.Done():
			log.Info("worker stopped due to context cancellation")
			return
		case <-timer.C:
			start := time.Now()
			wait := p.fetch(pair, cfg.Limit)
			if duration := time.Since(start); duration > interval {
				log.WithFields(logger.Fields{"duration": duration.Milliseconds(), "interval": interval.Milliseconds()}).Warn("fetch took longer than interval")
			}
			next = start.Truncate(interval).Add(interval)
			if wait > 0 && start.Add(wait).After(next) {
				next = start.Add(wait)
			}
			timer.Reset(time.Until(next))
		}
	}
}

// fetch pulls one snapshot and forwards it. It returns how long to back off
// when Gate asked the caller to slow down.
func (p *SnapshotPoller) fetch(pair string, limit int) time.Duration {
	log := p.log.WithComponent(snapshotComponent).WithFields(logger.Fields{"symbol": pair, "operation": "fetch_orderbook"})
	if err := p.limiter.Wait(p.ctx); err != nil {
		return 0
	}

	book, err := p.client.Spot().OrderBook(p.ctx, spot.OrderBookRequest{
		CurrencyPair: pair,
		Limit:        limit,
		WithID:       true,
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.TooManyRequests() {
			log.WithFields(logger.Fields{"retry_after": apiErr.RetryAfter.String()}).Warn("rate limited, backing off")
			if apiErr.RetryAfter > 0 {
				return apiErr.RetryAfter
			}
			return time.Second
		}
		if p.ctx.Err() == nil {
			log.WithError(err).Warn("failed to fetch order book snapshot")
			p.channels.SendError(err)
		}
		return 0
	}

	p.Forward(book.Snapshot(pair))
	return 0
}

// Forward classifies a REST snapshot and hands it to the processor.
func (p *SnapshotPoller) Forward(snap models.OrderBookSnapshot) bool {
	p.trackersMu.Lock()
	tracker, ok := p.trackers[snap.CurrencyPair]
	if !ok {
		tracker = &models.SequenceTracker{}
		p.trackers[snap.CurrencyPair] = tracker
	}
	status := tracker.Observe(snap.LastUpdateID)
	p.trackersMu.Unlock()

	if status == models.SequenceRegression {
		logger.RecordSequenceRegression()
		metrics.EmitMetric(p.log, snapshotComponent, "sequence_regression", 1, "counter", logger.Fields{"exchange": exchangeName, "symbol": snap.CurrencyPair})
	}

	logger.IncrementSnapshotRead(len(snap.Bids) + len(snap.Asks))
	update := models.OrderBookUpdate{
		Exchange:   exchangeName,
		Market:     marketSpot,
		Source:     sourceSnapshot,
		Snapshot:   snap,
		Sequence:   status,
		ReceivedAt: p.now(),
	}
	if p.channels.SendRaw(p.ctx, update) {
		return true
	}
	if p.ctx.Err() == nil {
		metrics.EmitDropMetric(p.log, metrics.DropMetricRawUpdate, exchangeName, marketSpot, snap.CurrencyPair, sourceSnapshot)
		p.log.WithComponent(snapshotComponent).Warn("raw channel full, dropping snapshot")
	}
	return false
}
