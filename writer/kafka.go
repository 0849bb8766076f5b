package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	kafka "github.com/segmentio/kafka-go"

	appconfig "gateflow/config"
	"gateflow/internal/metrics"
	"gateflow/logger"
	"gateflow/models"
)

const kafkaComponent = "kafka_writer"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes every level batch as one JSON message keyed by symbol.
type KafkaWriter struct {
	config  *appconfig.Config
	source  <-chan models.LevelBatch
	writer  MessageWriter
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	batchesWritten atomic.Int64
	bytesWritten   atomic.Int64
	errorsCount    atomic.Int64
}

func NewKafkaWriter(cfg *appconfig.Config, source <-chan models.LevelBatch) (*KafkaWriter, error) {
	if len(cfg.Storage.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	kw := NewKafkaWriterWithClient(cfg, source, &kafka.Writer{
		Addr:         kafka.TCP(cfg.Storage.Kafka.Brokers...),
		Topic:        cfg.Storage.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	})
	kw.log.WithComponent(kafkaComponent).WithFields(logger.Fields{
		"brokers": cfg.Storage.Kafka.Brokers,
		"topic":   cfg.Storage.Kafka.Topic,
	}).Info("kafka writer initialized")
	return kw, nil
}

// NewKafkaWriterWithClient builds a writer around an existing producer.
func NewKafkaWriterWithClient(cfg *appconfig.Config, source <-chan models.LevelBatch, w MessageWriter) *KafkaWriter {
	return &KafkaWriter{
		config: cfg,
		source: source,
		writer: w,
		wg:     &sync.WaitGroup{},
		log:    logger.GetLogger(),
	}
}

func (kw *KafkaWriter) Start(ctx context.Context) error {
	kw.mu.Lock()
	if kw.running {
		kw.mu.Unlock()
		return fmt.Errorf("kafka writer already running")
	}
	kw.running = true
	kw.ctx, kw.cancel = context.WithCancel(ctx)
	kw.mu.Unlock()

	kw.log.WithComponent(kafkaComponent).Info("starting kafka writer")
	kw.wg.Add(2)
	go kw.run()
	go kw.metricsReporter()
	return nil
}

func (kw *KafkaWriter) run() {
	defer kw.wg.Done()

	for {
		select {
		case <-kw.ctx.Done():
			kw.drain()
			return
		case batch, ok := <-kw.source:
			if !ok {
				return
			}
			_ = kw.Publish(kw.ctx, batch)
		}
	}
}

// drain publishes what is left in the source after a stop. The writes must
// outlive the cancelled context.
func (kw *KafkaWriter) drain() {
	ctx := context.WithoutCancel(kw.ctx)
	drained := 0
	for {
		select {
		case batch, ok := <-kw.source:
			if !ok {
				return
			}
			_ = kw.Publish(ctx, batch)
			drained++
		default:
			if drained > 0 {
				kw.log.WithComponent(kafkaComponent).WithFields(logger.Fields{"batches": drained}).Info("drained source on stop")
			}
			return
		}
	}
}

// Publish writes one batch. Failures are logged and counted.
func (kw *KafkaWriter) Publish(ctx context.Context, batch models.LevelBatch) error {
	log := kw.log.WithComponent(kafkaComponent).WithFields(logger.Fields{
		"batch_id": batch.BatchID,
		"symbol":   batch.Symbol,
	})

	data, err := json.Marshal(batch)
	if err != nil {
		kw.errorsCount.Add(1)
		log.WithError(err).Warn("failed to marshal batch")
		return err
	}
	msg := kafka.Message{
		Key:   []byte(batch.Symbol),
		Value: data,
		Headers: []kafka.Header{
			{Key: "batch_id", Value: []byte(batch.BatchID)},
			{Key: "exchange", Value: []byte(batch.Exchange)},
		},
		Time: batch.Timestamp,
	}
	if err := kw.writer.WriteMessages(ctx, msg); err != nil {
		kw.errorsCount.Add(1)
		log.WithError(err).Warn("failed to write message")
		return err
	}

	kw.batchesWritten.Add(1)
	kw.bytesWritten.Add(int64(len(data)))
	logger.IncrementKafkaWrite(int64(len(data)))
	log.WithFields(logger.Fields{"records": batch.RecordCount}).Debug("batch written to kafka")
	return nil
}

// Stop publishes what is still queued, then closes the producer.
func (kw *KafkaWriter) Stop() {
	kw.mu.Lock()
	kw.running = false
	if kw.cancel != nil {
		kw.cancel()
	}
	kw.mu.Unlock()

	kw.log.WithComponent(kafkaComponent).Info("stopping kafka writer")
	kw.wg.Wait()
	if err := kw.writer.Close(); err != nil {
		kw.log.WithComponent(kafkaComponent).WithError(err).Warn("failed to close kafka writer")
	}
	kw.log.WithComponent(kafkaComponent).Info("kafka writer stopped")
}

func (kw *KafkaWriter) metricsReporter() {
	defer kw.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-kw.ctx.Done():
			return
		case <-ticker.C:
			metrics.ReportWriter(kw.log, kafkaComponent, kw.Stats())
		}
	}
}

func (kw *KafkaWriter) Stats() metrics.WriterStats {
	return metrics.WriterStats{
		BatchesWritten: kw.batchesWritten.Load(),
		FilesWritten:   kw.batchesWritten.Load(),
		BytesWritten:   kw.bytesWritten.Load(),
		ErrorsCount:    kw.errorsCount.Load(),
		QueueLen:       len(kw.source),
		QueueCap:       cap(kw.source),
	}
}
