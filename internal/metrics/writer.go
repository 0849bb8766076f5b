package metrics

import "gateflow/logger"

// WriterStats holds metrics for writer components.
type WriterStats struct {
	BatchesWritten int64
	FilesWritten   int64
	BytesWritten   int64
	ErrorsCount    int64
	QueueLen       int
	QueueCap       int
}

// ReportWriter emits common writer metrics using the provided logger and component name.
func ReportWriter(log *logger.Log, component string, stats WriterStats) {
	errorRate := float64(0)
	if stats.BatchesWritten+stats.ErrorsCount > 0 {
		errorRate = float64(stats.ErrorsCount) / float64(stats.BatchesWritten+stats.ErrorsCount)
	}

	avgBytesPerFile := float64(0)
	if stats.FilesWritten > 0 {
		avgBytesPerFile = float64(stats.BytesWritten) / float64(stats.FilesWritten)
	}

	EmitMetric(log, component, "batches_written", stats.BatchesWritten, "counter", nil)
	EmitMetric(log, component, "files_written", stats.FilesWritten, "counter", nil)
	EmitMetric(log, component, "bytes_written", stats.BytesWritten, "counter", logger.Fields{"unit": "bytes"})
	EmitMetric(log, component, "errors_count", stats.ErrorsCount, "counter", nil)
	EmitMetric(log, component, "error_rate", errorRate, "gauge", nil)

	if log == nil {
		log = logger.GetLogger()
	}
	entry := log.WithComponent(component).WithFields(logger.Fields{
		"batches_written":    stats.BatchesWritten,
		"files_written":      stats.FilesWritten,
		"bytes_written":      stats.BytesWritten,
		"errors_count":       stats.ErrorsCount,
		"error_rate":         errorRate,
		"avg_bytes_per_file": avgBytesPerFile,
		"queue_len":          stats.QueueLen,
		"queue_cap":          stats.QueueCap,
	})

	if stats.ErrorsCount > 0 {
		entry.Warn(component + " metrics")
		return
	}

	entry.Info(component + " metrics")
}

// ProcessorStats holds metrics for the flattening processor.
type ProcessorStats struct {
	UpdatesProcessed int64
	BatchesEmitted   int64
	LevelsProcessed  int64
	ErrorsCount      int64
	ActiveBatches    int
}

// ReportProcessor emits flattener throughput metrics.
func ReportProcessor(log *logger.Log, component string, stats ProcessorStats) {
	avgLevels := float64(0)
	if stats.UpdatesProcessed > 0 {
		avgLevels = float64(stats.LevelsProcessed) / float64(stats.UpdatesProcessed)
	}

	EmitMetric(log, component, "updates_processed", stats.UpdatesProcessed, "counter", nil)
	EmitMetric(log, component, "batches_emitted", stats.BatchesEmitted, "counter", nil)
	EmitMetric(log, component, "levels_processed", stats.LevelsProcessed, "counter", nil)
	EmitMetric(log, component, "errors_count", stats.ErrorsCount, "counter", nil)
	EmitMetric(log, component, "active_batches", stats.ActiveBatches, "gauge", nil)
	EmitMetric(log, component, "avg_levels_per_update", avgLevels, "gauge", nil)
}
