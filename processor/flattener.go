package processor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	appconfig "gateflow/config"
	"gateflow/internal/channel"
	"gateflow/internal/metrics"
	"gateflow/internal/symbols"
	"gateflow/logger"
	"gateflow/models"
)

const component = "flattener"

// Flattener turns order book snapshots into one record per price level and
// groups them into per-symbol batches for the writers.
type Flattener struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	batchMu   sync.Mutex
	batches   map[string]*models.LevelBatch
	lastFlush map[string]time.Time

	updatesProcessed atomic.Int64
	batchesEmitted   atomic.Int64
	levelsProcessed  atomic.Int64
	errorsCount      atomic.Int64
}

func NewFlattener(cfg *appconfig.Config, ch *channel.Channels) *Flattener {
	return &Flattener{
		config:    cfg,
		channels:  ch,
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
		batches:   make(map[string]*models.LevelBatch),
		lastFlush: make(map[string]time.Time),
	}
}

func (f *Flattener) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("flattener already running")
	}
	f.running = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	numWorkers := f.config.Processor.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	f.log.WithComponent(component).WithFields(logger.Fields{"workers": numWorkers}).Info("starting flattener")

	for i := 0; i < numWorkers; i++ {
		f.wg.Add(1)
		go f.worker(i)
	}

	f.wg.Add(2)
	go f.batchFlusher()
	go f.metricsReporter()
	return nil
}

// Stop drains the raw channel, waits for the workers and hands every pending
// batch to the writers. Stop the readers first so the drain terminates.
func (f *Flattener) Stop() {
	f.mu.Lock()
	f.running = false
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	f.log.WithComponent(component).Info("stopping flattener")
	f.wg.Wait()
	f.flushAllBatches()
	f.log.WithComponent(component).Info("flattener stopped")
}

func (f *Flattener) worker(workerID int) {
	defer f.wg.Done()
	log := f.log.WithComponent(component).WithFields(logger.Fields{"worker_id": workerID})

	for {
		select {
		case <-f.ctx.Done():
			f.drainRaw(log)
			return
		case update, ok := <-f.channels.Raw:
			if !ok {
				log.Info("raw channel closed, worker stopping")
				return
			}
			f.processTimed(log, update)
		}
	}
}

// drainRaw processes whatever is still buffered in the raw channel.
func (f *Flattener) drainRaw(log *logger.Entry) {
	drained := 0
	defer func() {
		if drained > 0 {
			log.WithFields(logger.Fields{"updates": drained}).Info("drained raw channel on stop")
		}
	}()
	for {
		select {
		case update, ok := <-f.channels.Raw:
			if !ok {
				return
			}
			f.processTimed(log, update)
			drained++
		default:
			return
		}
	}
}

func (f *Flattener) processTimed(log *logger.Entry, update models.OrderBookUpdate) {
	start := time.Now()
	n := f.Process(update)
	logger.LogPerformanceEntry(log, component, "process_update", time.Since(start), logger.Fields{
		"symbol": update.Snapshot.CurrencyPair,
		"source": update.Source,
		"levels": n,
	})
}

// Process flattens one update into the pending batch of its symbol and
// returns the number of levels added.
func (f *Flattener) Process(update models.OrderBookUpdate) int {
	records := Flatten(update)
	f.updatesProcessed.Add(1)
	if len(records) == 0 {
		f.log.WithComponent(component).WithFields(logger.Fields{
			"symbol":         update.Snapshot.CurrencyPair,
			"last_update_id": update.Snapshot.LastUpdateID,
		}).Debug("order book update has no levels")
		return 0
	}
	f.levelsProcessed.Add(int64(len(records)))
	f.addToBatch(update, records)
	return len(records)
}

// Flatten expands a snapshot into level records, bids first. Level numbers
// follow the server's ordering so level 1 is the best price on each side.
// Levels with a zero quantity are skipped.
func Flatten(update models.OrderBookUpdate) []models.LevelRecord {
	snap := update.Snapshot
	symbol := symbols.FromGate(snap.CurrencyPair)
	received := update.ReceivedAt.UnixMilli()
	seq := update.Sequence.String()

	records := make([]models.LevelRecord, 0, len(snap.Bids)+len(snap.Asks))
	appendSide := func(side string, levels []models.PriceLevel) {
		for i, lvl := range levels {
			if lvl.Quantity.IsZero() {
				continue
			}
			records = append(records, models.LevelRecord{
				Exchange:     update.Exchange,
				Symbol:       symbol,
				Market:       update.Market,
				Timestamp:    snap.UpdateTimeMs,
				ReceivedTime: received,
				LastUpdateID: snap.LastUpdateID,
				Side:         side,
				Price:        lvl.Price.String(),
				Quantity:     lvl.Quantity.String(),
				Level:        i + 1,
				Sequence:     seq,
			})
		}
	}
	appendSide("bid", snap.Bids)
	appendSide("ask", snap.Asks)
	return records
}

func batchKey(exchange, market, symbol string) string {
	return exchange + "_" + market + "_" + symbol
}

func (f *Flattener) addToBatch(update models.OrderBookUpdate, records []models.LevelRecord) {
	symbol := records[0].Symbol
	key := batchKey(update.Exchange, update.Market, symbol)
	ts := time.UnixMilli(update.Snapshot.UpdateTimeMs).UTC()

	f.batchMu.Lock()
	defer f.batchMu.Unlock()

	batch, exists := f.batches[key]
	if !exists {
		batch = &models.LevelBatch{
			BatchID:     uuid.New().String(),
			Exchange:    update.Exchange,
			Symbol:      symbol,
			Market:      update.Market,
			Entries:     make([]models.LevelRecord, 0, f.config.Processor.BatchSize),
			Timestamp:   ts,
			ProcessedAt: time.Now().UTC(),
		}
		f.batches[key] = batch
		f.lastFlush[key] = time.Now()
	}

	batch.Entries = append(batch.Entries, records...)
	batch.RecordCount = len(batch.Entries)
	if ts.After(batch.Timestamp) {
		batch.Timestamp = ts
	}

	if batch.RecordCount >= f.config.Processor.BatchSize {
		f.flushBatch(key)
	}
}

func (f *Flattener) batchFlusher() {
	defer f.wg.Done()

	tick := f.config.Processor.BatchTimeout / 2
	if tick <= 0 || tick > time.Second {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.flushTimedOutBatches()
		}
	}
}

func (f *Flattener) flushTimedOutBatches() {
	f.batchMu.Lock()
	defer f.batchMu.Unlock()

	now := time.Now()
	for key, last := range f.lastFlush {
		if now.Sub(last) >= f.config.Processor.BatchTimeout {
			f.flushBatch(key)
		}
	}
}

// flushBatch sends the batch under key and forgets it. Each sink that
// cannot take the batch is counted as its own drop. Callers hold batchMu.
func (f *Flattener) flushBatch(key string) {
	batch, exists := f.batches[key]
	if !exists {
		return
	}
	delete(f.batches, key)
	delete(f.lastFlush, key)
	if batch.RecordCount == 0 {
		return
	}

	log := f.log.WithComponent(component).WithFields(logger.Fields{
		"batch_id":     batch.BatchID,
		"symbol":       batch.Symbol,
		"record_count": batch.RecordCount,
	})

	// Sends never block, so a stopping flattener still delivers and counts.
	d := f.channels.SendNorm(context.Background(), *batch)
	if d.Delivered() {
		f.batchesEmitted.Add(1)
		logger.LogDataFlowEntry(log, component, "norm_channel", batch.RecordCount, "level_batch")
	}
	if !d.Norm {
		f.errorsCount.Add(1)
		metrics.EmitDropMetric(f.log, metrics.DropMetricNormBatch, batch.Exchange, batch.Market, batch.Symbol, component)
		log.Warn("norm channel is full, batch not written to Parquet")
	}
	if f.channels.StreamEnabled() && !d.Stream {
		f.errorsCount.Add(1)
		metrics.EmitDropMetric(f.log, metrics.DropMetricStreamBatch, batch.Exchange, batch.Market, batch.Symbol, component)
		log.Warn("stream channel is full, batch not published to Kafka")
	}
}

func (f *Flattener) flushAllBatches() {
	f.batchMu.Lock()
	defer f.batchMu.Unlock()

	for key := range f.batches {
		f.flushBatch(key)
	}
}

func (f *Flattener) metricsReporter() {
	defer f.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			metrics.ReportProcessor(f.log, component, f.Stats())
		}
	}
}

func (f *Flattener) Stats() metrics.ProcessorStats {
	f.batchMu.Lock()
	active := len(f.batches)
	f.batchMu.Unlock()
	return metrics.ProcessorStats{
		UpdatesProcessed: f.updatesProcessed.Load(),
		BatchesEmitted:   f.batchesEmitted.Load(),
		LevelsProcessed:  f.levelsProcessed.Load(),
		ErrorsCount:      f.errorsCount.Load(),
		ActiveBatches:    active,
	}
}
