package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gateflow/client"
	"gateflow/config"
	"gateflow/internal/channel"
	"gateflow/internal/metrics"
	"gateflow/logger"
	"gateflow/processor"
	"gateflow/reader/gate"
	"gateflow/writer"
)

// component is satisfied by every pipeline stage.
type component interface {
	Start(ctx context.Context) error
	Stop()
}

func main() {
	log := logger.GetLogger()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	if config.IsProductionLike(env) {
		if !cfg.Storage.S3.Enabled && !cfg.Storage.Kafka.Enabled {
			log.WithFields(logger.Fields{"env": env}).Error("no sink enabled; enable storage.s3 or storage.kafka")
			os.Exit(1)
		}
		cfg.Logging.Format = "json"
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}
	metrics.Configure(cfg.Metrics)

	log.WithFields(logger.Fields{
		"service": cfg.Gateflow.Name,
		"version": cfg.Gateflow.Version,
		"env":     env,
	}).Info("starting gateflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Metrics.Region, "", cfg.Logging.DashboardName)
		metrics.InitCloudWatch(cfg.Metrics.Region, "", cfg.Logging.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	var exporter *metrics.Exporter
	if cfg.Metrics.PrometheusAddr != "" {
		exporter = metrics.NewExporter()
		exporter.Serve(cfg.Metrics.PrometheusAddr)
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer, cfg.Channels.ProcessedBuffer, cfg.Channels.ErrorBuffer)
	s3Enabled, kafkaEnabled := cfg.Storage.S3.Enabled, cfg.Storage.Kafka.Enabled
	if s3Enabled && kafkaEnabled {
		channels.EnableStream(cfg.Channels.ProcessedBuffer)
	}
	metrics.StartChannelSizeMetrics(ctx, channels, 10*time.Second)
	go drainErrors(ctx, log, channels)

	restClient, err := client.NewFromConfig(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create gate client")
		os.Exit(1)
	}

	// Started in order and stopped in reverse.
	var components []component
	if cfg.Reader.Orderbook.Enabled {
		components = append(components, gate.NewStreamReader(cfg, channels))
	}
	if cfg.Reader.Snapshot.Enabled {
		components = append(components, gate.NewSnapshotPoller(cfg, restClient, channels))
	}
	if len(components) == 0 {
		log.Error("no reader enabled; enable reader.orderbook or reader.snapshot")
		os.Exit(1)
	}
	components = append(components, processor.NewFlattener(cfg, channels))

	if s3Enabled {
		s3Writer, err := writer.NewS3Writer(cfg, channels.Norm)
		if err != nil {
			log.WithError(err).Error("failed to create S3 writer")
			os.Exit(1)
		}
		components = append(components, s3Writer)
	}
	if kafkaEnabled {
		// Kafka reads the fan-out copy when S3 also consumes the norm channel.
		source := channels.Norm
		if s3Enabled {
			source = channels.Stream
		}
		kafkaWriter, err := writer.NewKafkaWriter(cfg, source)
		if err != nil {
			log.WithError(err).Error("failed to create Kafka writer")
			os.Exit(1)
		}
		components = append(components, kafkaWriter)
	}
	if !s3Enabled && !kafkaEnabled {
		log.WithComponent("main").Warn("no storage enabled; flattened batches will be dropped")
	}

	for _, c := range components {
		if err := c.Start(ctx); err != nil {
			log.WithError(err).Error("component failed to start")
			cancel()
			os.Exit(1)
		}
	}
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")

	// Stop in start order: readers, then the flattener, then the writers.
	// Each stage drains what the previous one left in its channel.
	done := make(chan struct{})
	go func() {
		for _, c := range components {
			c.Stop()
		}
		close(done)
	}()

	stopped := false
	select {
	case <-done:
		stopped = true
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}
	cancel()

	if exporter != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := exporter.Close(shutdownCtx); err != nil {
			log.WithError(err).Warn("failed to stop metrics server")
		}
		stop()
	}
	// Components still running after the timeout may yet send.
	if stopped {
		channels.Close()
	}

	stats := channels.GetStats()
	log.WithFields(logger.Fields{
		"raw_sent":       stats.RawSent,
		"raw_dropped":    stats.RawDropped,
		"norm_sent":      stats.NormSent,
		"norm_dropped":   stats.NormDropped,
		"stream_sent":    stats.StreamSent,
		"stream_dropped": stats.StreamDropped,
		"errors_sent":    stats.ErrorsSent,
		"errors_dropped": stats.ErrorsDropped,
	}).Info("gateflow stopped")
}

// drainErrors logs pipeline errors so the error channel never fills up.
func drainErrors(ctx context.Context, log *logger.Log, channels *channel.Channels) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-channels.Errors:
			if !ok {
				return
			}
			log.WithComponent("pipeline").WithError(err).Debug("pipeline error")
		}
	}
}
