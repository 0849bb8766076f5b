package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "gateflow/config"
	"gateflow/internal/metrics"
	"gateflow/logger"
	"gateflow/models"
)

const s3Component = "s3_writer"

// ObjectPutter is the part of the S3 client the writer needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer buffers level batches per symbol and uploads them as Parquet
// files, either when a buffer reaches writer.buffer.max_size or on every
// flush interval.
type S3Writer struct {
	config   *appconfig.Config
	source   <-chan models.LevelBatch
	client   ObjectPutter
	manifest *Manifest
	ctx      context.Context
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log

	bufMu  sync.Mutex
	buffer map[bufferKey][]models.LevelRecord

	batchesWritten atomic.Int64
	filesWritten   atomic.Int64
	bytesWritten   atomic.Int64
	errorsCount    atomic.Int64
}

type bufferKey struct {
	exchange string
	market   string
	symbol   string
}

func NewS3Writer(cfg *appconfig.Config, source <-chan models.LevelBatch) (*S3Writer, error) {
	ctx := context.Background()
	s3cfg := cfg.Storage.S3

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(s3cfg.Region),
	}
	if s3cfg.AccessKeyID != "" && s3cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
		}
		o.UsePathStyle = s3cfg.PathStyle
	})

	w := NewS3WriterWithClient(cfg, source, client)
	w.log.WithComponent(s3Component).WithFields(logger.Fields{
		"bucket":     s3cfg.Bucket,
		"region":     s3cfg.Region,
		"endpoint":   s3cfg.Endpoint,
		"path_style": s3cfg.PathStyle,
	}).Info("s3 writer initialized")
	return w, nil
}

// NewS3WriterWithClient builds a writer around an existing S3 client.
func NewS3WriterWithClient(cfg *appconfig.Config, source <-chan models.LevelBatch, client ObjectPutter) *S3Writer {
	return &S3Writer{
		config:   cfg,
		source:   source,
		client:   client,
		manifest: NewManifest(client, cfg.Storage.S3.Bucket, "metadata"),
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		buffer:   make(map[bufferKey][]models.LevelRecord),
	}
}

func (w *S3Writer) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("s3 writer already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	numWorkers := w.config.Writer.MaxWorkers
	if numWorkers < 1 {
		numWorkers = 1
	}
	w.log.WithComponent(s3Component).WithFields(logger.Fields{"workers": numWorkers}).Info("starting s3 writer")

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
	w.wg.Add(2)
	go w.flushWorker()
	go w.metricsReporter()
	return nil
}

// Stop drains the source, waits for the workers and uploads every buffer.
// Stop the producers first so nothing is sent after the drain.
func (w *S3Writer) Stop() {
	w.mu.Lock()
	w.running = false
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.log.WithComponent(s3Component).Info("stopping s3 writer")
	w.wg.Wait()
	w.Flush("shutdown")
	w.log.WithComponent(s3Component).Info("s3 writer stopped")
}

func (w *S3Writer) worker(workerID int) {
	defer w.wg.Done()
	log := w.log.WithComponent(s3Component).WithFields(logger.Fields{"worker_id": workerID})

	for {
		select {
		case <-w.ctx.Done():
			w.drain(log)
			return
		case batch, ok := <-w.source:
			if !ok {
				log.Info("norm channel closed, worker stopping")
				return
			}
			w.AddBatch(batch)
		}
	}
}

// drain buffers whatever is left in the source until it is empty or closed.
func (w *S3Writer) drain(log *logger.Entry) {
	for {
		select {
		case batch, ok := <-w.source:
			if !ok {
				return
			}
			w.AddBatch(batch)
		default:
			log.Debug("source drained, worker stopping")
			return
		}
	}
}

// AddBatch buffers batch and uploads its symbol's buffer once it is full.
func (w *S3Writer) AddBatch(batch models.LevelBatch) {
	if len(batch.Entries) == 0 {
		return
	}
	key := bufferKey{exchange: batch.Exchange, market: batch.Market, symbol: batch.Symbol}

	w.bufMu.Lock()
	w.buffer[key] = append(w.buffer[key], batch.Entries...)
	var full []models.LevelRecord
	if limit := w.config.Writer.Buffer.MaxSize; limit > 0 && len(w.buffer[key]) >= limit {
		full = w.buffer[key]
		delete(w.buffer, key)
	}
	w.bufMu.Unlock()

	w.batchesWritten.Add(1)
	if full != nil {
		w.upload(key, full)
	}
}

func (w *S3Writer) flushWorker() {
	defer w.wg.Done()

	interval := w.config.Writer.Buffer.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Flush("interval")
		}
	}
}

// Flush uploads every non-empty buffer.
func (w *S3Writer) Flush(reason string) {
	w.bufMu.Lock()
	buffers := w.buffer
	w.buffer = make(map[bufferKey][]models.LevelRecord)
	w.bufMu.Unlock()

	if len(buffers) == 0 {
		return
	}
	w.log.WithComponent(s3Component).WithFields(logger.Fields{
		"flushed_buffers": len(buffers),
		"reason":          reason,
	}).Debug("flushing buffers")

	for key, records := range buffers {
		if len(records) > 0 {
			w.upload(key, records)
		}
	}
}

func (w *S3Writer) upload(key bufferKey, records []models.LevelRecord) {
	ts := latestTimestamp(records)
	objectKey := GenerateS3Key(w.config.Writer.Partitioning, key.exchange, key.market, key.symbol, ts)
	log := w.log.WithComponent(s3Component).WithFields(logger.Fields{
		"symbol":       key.symbol,
		"record_count": len(records),
		"s3_key":       objectKey,
	})

	data, rows, err := EncodeParquet(records, w.config.Writer.Formats.Parquet)
	if err != nil {
		w.errorsCount.Add(1)
		log.WithError(err).Error("failed to create parquet file")
		return
	}
	if rows == 0 {
		return
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":     "parquet",
			"compression":      w.config.Writer.Formats.Parquet.Compression,
			"gateflow-version": w.config.Gateflow.Version,
		},
	}

	ctx := context.Background()
	if w.ctx != nil {
		ctx = context.WithoutCancel(w.ctx)
	}
	if _, err := w.client.PutObject(ctx, input); err != nil {
		w.errorsCount.Add(1)
		log.WithError(err).WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": w.config.Storage.S3.Bucket}).
			Error("failed to upload to S3")
		return
	}

	w.filesWritten.Add(1)
	w.bytesWritten.Add(int64(len(data)))
	logger.IncrementS3Write(int64(len(data)))
	log.WithFields(logger.Fields{"file_size": len(data)}).Info("parquet file uploaded")

	df := DataFile{
		Path:        fmt.Sprintf("s3://%s/%s", w.config.Storage.S3.Bucket, objectKey),
		FileSize:    int64(len(data)),
		RecordCount: int64(rows),
		Partition: map[string]string{
			"exchange": key.exchange,
			"market":   key.market,
			"symbol":   key.symbol,
			"date":     ts.Format("2006-01-02"),
		},
		Timestamp: ts,
	}
	if err := w.manifest.AddFile(ctx, df); err != nil {
		log.WithError(err).Warn("failed to update table metadata")
	}
}

func latestTimestamp(records []models.LevelRecord) time.Time {
	var latest int64
	for _, r := range records {
		if r.Timestamp > latest {
			latest = r.Timestamp
		}
	}
	if latest == 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(latest).UTC()
}

// GenerateS3Key lays out the object key following the partitioning scheme,
// for example "exchange/market/symbol/date" gives
// exchange=gate/market=spot/symbol=BTCUSDT/date=2020-11-26/gate_orderbook_BTCUSDT_20201126092932.parquet.
// An "hour" segment adds hour=HH. Unknown segments are ignored.
func GenerateS3Key(p appconfig.PartitioningConfig, exchange, market, symbol string, ts time.Time) string {
	ts = ts.UTC()
	layout := p.TimeFormat
	if layout == "" {
		layout = "2006-01-02"
	}
	scheme := p.Scheme
	if scheme == "" {
		scheme = "exchange/market/symbol/date"
	}

	var parts []string
	for _, seg := range strings.Split(scheme, "/") {
		switch strings.TrimSpace(seg) {
		case "exchange":
			parts = append(parts, "exchange="+exchange)
		case "market":
			if market != "" {
				parts = append(parts, "market="+market)
			}
		case "symbol":
			parts = append(parts, "symbol="+symbol)
		case "date":
			parts = append(parts, "date="+ts.Format(layout))
		case "hour":
			parts = append(parts, fmt.Sprintf("hour=%02d", ts.Hour()))
		}
	}

	filename := fmt.Sprintf("%s_orderbook_%s_%s.parquet", exchange, symbol, ts.Format("20060102150405"))
	return path.Join(append(parts, filename)...)
}

func (w *S3Writer) metricsReporter() {
	defer w.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			metrics.ReportWriter(w.log, s3Component, w.Stats())
		}
	}
}

func (w *S3Writer) Stats() metrics.WriterStats {
	return metrics.WriterStats{
		BatchesWritten: w.batchesWritten.Load(),
		FilesWritten:   w.filesWritten.Load(),
		BytesWritten:   w.bytesWritten.Load(),
		ErrorsCount:    w.errorsCount.Load(),
		QueueLen:       len(w.source),
		QueueCap:       cap(w.source),
	}
}

