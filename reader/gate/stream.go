package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	appconfig "gateflow/config"
	"gateflow/internal/channel"
	"gateflow/internal/metrics"
	ratemetrics "gateflow/internal/metrics/rate"
	"gateflow/internal/symbols"
	"gateflow/logger"
	"gateflow/models"
)

const streamComponent = "gate_ws"

// StreamReader subscribes to spot.order_book for the configured pairs and
// forwards every decoded snapshot into the raw channel. Frames that fail to
// decode are reported and skipped; the connection stays up. A dropped
// connection is re-dialled until the context is cancelled.
type StreamReader struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	url     string
	pairs   []string
	pending *PendingRequests
	nextID  atomic.Int64
	now     func() time.Time

	// Owned by the read goroutine.
	trackers map[string]*models.SequenceTracker
	connID   string

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func NewStreamReader(cfg *appconfig.Config, ch *channel.Channels) *StreamReader {
	wsURL := cfg.API.WSURL
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	pairs := make([]string, 0, len(cfg.Reader.Orderbook.Pairs))
	for _, p := range cfg.Reader.Orderbook.Pairs {
		pairs = append(pairs, symbols.ToGate(p))
	}
	return &StreamReader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		url:      wsURL,
		pairs:    pairs,
		pending:  NewPendingRequests(),
		now:      time.Now,
		trackers: make(map[string]*models.SequenceTracker),
	}
}

func (r *StreamReader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("gate stream reader already running")
	}
	cfg := r.config.Reader.Orderbook
	log := r.log.WithComponent(streamComponent).WithFields(logger.Fields{"operation": "Start"})
	if !cfg.Enabled {
		r.mu.Unlock()
		log.Warn("gate order book stream is disabled")
		return fmt.Errorf("gate order book stream is disabled")
	}
	dialer, header, err := newDialer(r.config.API.Proxy, r.config.API.UserAgent)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("gate stream proxy: %w", err)
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	log.WithFields(logger.Fields{"pairs": r.pairs, "url": r.url}).Info("starting gate order book stream")
	r.wg.Add(1)
	go r.stream(dialer, header)
	return nil
}

// Stop unsubscribes, closes the connection and cancels any pending dial or
// reconnect wait.
func (r *StreamReader) Stop() {
	r.mu.Lock()
	r.running = false
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.log.WithComponent(streamComponent).Info("stopping gate order book stream")
	r.unsubscribe()
	r.closeConn()
	r.wg.Wait()
	r.log.WithComponent(streamComponent).Info("gate order book stream stopped")
}

// stream owns the connection lifecycle: dial, subscribe, read, reconnect.
func (r *StreamReader) stream(dialer *websocket.Dialer, header http.Header) {
	defer r.wg.Done()
	cfg := r.config.Reader.Orderbook
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	log := r.log.WithComponent(streamComponent).WithFields(logger.Fields{"worker": "order_book_stream"})

	for attempt := 0; ; attempt++ {
		if !r.active() {
			return
		}
		if attempt > 0 {
			metrics.EmitMetric(r.log, streamComponent, "reconnects", 1, "counter", logger.Fields{"exchange": exchangeName})
			select {
			case <-time.After(delay):
			case <-r.ctx.Done():
				return
			}
		}

		conn, _, err := dialer.DialContext(r.ctx, r.url, header)
		if err != nil {
			if !r.active() {
				return
			}
			log.WithError(err).Warn("failed to connect websocket, retrying")
			continue
		}
		r.setConn(conn)
		// Stop may have run while dialling; its closeConn missed this socket.
		if !r.active() {
			r.closeConn()
			return
		}
		r.connID = uuid.New().String()
		r.trackers = make(map[string]*models.SequenceTracker)
		r.pending.Reset()
		connLog := log.WithFields(logger.Fields{"connection_id": r.connID})
		connLog.Info("websocket connected")

		if err := r.subscribe(cfg); err != nil {
			connLog.WithError(err).Warn("failed to subscribe")
			r.closeConn()
			continue
		}

		done := make(chan struct{})
		go r.keepalive(cfg.PingInterval, done)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(done)
				r.closeConn()
				if !r.active() {
					return
				}
				connLog.WithError(err).Warn("websocket read error, reconnecting")
				break
			}
			_ = r.handleFrame(msg)
		}
	}
}

func (r *StreamReader) subscribe(cfg appconfig.OrderbookStreamConfig) error {
	for _, pair := range r.pairs {
		req := models.NewSubscribe(r.nextID.Add(1), r.now(), models.ChannelOrderBook, orderBookPayload(cfg, pair)...)
		if err := r.send(req); err != nil {
			return err
		}
	}
	return nil
}

// unsubscribe asks Gate to stop pushing before the connection is closed.
// Failures are ignored since the socket is about to go away.
func (r *StreamReader) unsubscribe() {
	cfg := r.config.Reader.Orderbook
	for _, pair := range r.pairs {
		req := models.NewUnsubscribe(r.nextID.Add(1), r.now(), models.ChannelOrderBook, orderBookPayload(cfg, pair)...)
		if err := r.send(req); err != nil {
			return
		}
	}
}

func orderBookPayload(cfg appconfig.OrderbookStreamConfig, pair string) []string {
	level := cfg.Level
	if level <= 0 {
		level = 20
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return models.OrderBookPayload(pair, level, interval)
}

// send writes req and registers it for acknowledgement.
func (r *StreamReader) send(req models.WsRequest) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn == nil {
		return errors.New("websocket not connected")
	}
	r.pending.Register(req, r.now())
	if err := r.conn.WriteJSON(req); err != nil {
		if req.ID != nil {
			r.pending.Resolve(*req.ID, req.Channel, req.Event)
		}
		return err
	}
	return nil
}

// keepalive sends spot.ping and warns about subscriptions never acknowledged.
func (r *StreamReader) keepalive(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.send(models.NewPing(r.now())); err != nil {
				r.log.WithComponent(streamComponent).WithError(err).Debug("ping failed")
				return
			}
			for _, req := range r.pending.Expire(r.now().Add(-2 * interval)) {
				r.log.WithComponent(streamComponent).WithFields(logger.Fields{
					"id":      req.ID,
					"event":   req.Event,
					"payload": req.Payload,
				}).Warn("request was never acknowledged")
			}
		}
	}
}

// handleFrame decodes one inbound frame and routes it. The returned error is
// the one reported for the frame, if any.
func (r *StreamReader) handleFrame(data []byte) error {
	resp, err := models.DecodeWsResponse(data)
	logger.RecordFrame(len(data), err != nil)
	if err != nil {
		r.report(err, data)
		return err
	}

	switch p := resp.Payload.(type) {
	case models.Pong:
		r.log.WithComponent(streamComponent).Debug("pong")
		return nil
	case models.OrderBookMessage:
		// Pushes may echo the subscription id; only a pending one is checked.
		if id := resp.ID; id != nil && (p.Event.Kind() != models.EventUpdate || r.pending.Has(*id)) {
			if _, err := r.pending.Resolve(*id, models.ChannelOrderBook, p.Event.Kind()); err != nil {
				r.report(err, data)
				return err
			}
		}
		return r.handleOrderBookEvent(resp, p.Event)
	default:
		return nil
	}
}

func (r *StreamReader) handleOrderBookEvent(resp models.WsResponse, event models.WsEvent[models.OrderBookSnapshot]) error {
	log := r.log.WithComponent(streamComponent)
	switch ev := event.(type) {
	case models.Subscribe[models.OrderBookSnapshot]:
		if _, err := ev.Result.Unwrap(); err != nil {
			r.report(err, nil)
			return err
		}
		log.WithFields(idFields(resp.ID)).Info("order book subscription confirmed")
	case models.Unsubscribe[models.OrderBookSnapshot]:
		if _, err := ev.Result.Unwrap(); err != nil {
			r.report(err, nil)
			return err
		}
		log.WithFields(idFields(resp.ID)).Info("order book subscription removed")
	case models.Update[models.OrderBookSnapshot]:
		snap, err := ev.Result.Unwrap()
		if err != nil {
			r.report(err, nil)
			return err
		}
		r.forward(snap)
	}
	return nil
}

// forward classifies the snapshot's sequence and hands it to the processor.
// The status travels on the update; the snapshot is forwarded either way.
func (r *StreamReader) forward(snap models.OrderBookSnapshot) {
	tracker, ok := r.trackers[snap.CurrencyPair]
	if !ok {
		tracker = &models.SequenceTracker{}
		r.trackers[snap.CurrencyPair] = tracker
	}
	prev, _ := tracker.Last()
	status := tracker.Observe(snap.LastUpdateID)
	// Each push is a full snapshot, so ids skipping forward is normal. Only
	// a regression is worth counting.
	if status == models.SequenceRegression {
		logger.RecordSequenceRegression()
		metrics.EmitMetric(r.log, streamComponent, "sequence_regression", 1, "counter", logger.Fields{"exchange": exchangeName, "symbol": snap.CurrencyPair})
	}
	if status.Broken() {
		r.log.WithComponent(streamComponent).WithFields(logger.Fields{
			"symbol": snap.CurrencyPair,
			"prev":   prev,
			"next":   snap.LastUpdateID,
			"status": status.String(),
		}).Debug("order book sequence break")
	}

	update := models.OrderBookUpdate{
		Exchange:     exchangeName,
		Market:       marketSpot,
		Source:       sourceStream,
		ConnectionID: r.connID,
		Snapshot:     snap,
		Sequence:     status,
		ReceivedAt:   r.now(),
	}
	if r.channels.SendRaw(r.ctx, update) {
		logger.RecordBookUpdate()
		return
	}
	if r.ctx.Err() != nil {
		return
	}
	metrics.EmitDropMetric(r.log, metrics.DropMetricRawUpdate, exchangeName, marketSpot, snap.CurrencyPair, sourceStream)
	r.log.WithComponent(streamComponent).Warn("raw channel full, dropping order book update")
}

// report logs a per-frame error and forwards it to the error channel.
func (r *StreamReader) report(err error, frame []byte) {
	fields := logger.Fields{"connection_id": r.connID}
	if len(frame) > 0 {
		snippet := frame
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		fields["frame"] = string(snippet)
	}

	var wsErr *models.WsErr
	if errors.As(err, &wsErr) {
		fields["code"] = wsErr.Code.String()
		ratemetrics.ReportLimitFromMessage(r.log, exchangeName, "", "", sourceStream, wsErr.Message)
	}

	r.log.WithComponent(streamComponent).WithFields(fields).WithError(err).Warn("order book frame rejected")
	if !r.channels.SendError(err) {
		metrics.EmitDropMetric(r.log, metrics.DropMetricStreamError, exchangeName, marketSpot, "", sourceStream)
	}
}

func idFields(id *int64) logger.Fields {
	if id == nil {
		return logger.Fields{}
	}
	return logger.Fields{"id": *id}
}

// active reports whether the reader should keep (re)connecting.
func (r *StreamReader) active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running && r.ctx.Err() == nil
}

func (r *StreamReader) setConn(conn *websocket.Conn) {
	r.writeMu.Lock()
	r.conn = conn
	r.writeMu.Unlock()
}

func (r *StreamReader) closeConn() {
	r.writeMu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
	r.writeMu.Unlock()
}
