package metrics

import "gateflow/logger"

// DropMetric identifies the metric name emitted when channel messages are dropped.
type DropMetric string

const (
	// DropMetricRawUpdate records order book updates dropped before flattening.
	DropMetricRawUpdate DropMetric = "raw_updates_dropped"
	// DropMetricNormBatch records flattened batches the Parquet writer never saw.
	DropMetricNormBatch DropMetric = "norm_batches_dropped"
	// DropMetricStreamBatch records flattened batches Kafka never saw.
	DropMetricStreamBatch DropMetric = "stream_batches_dropped"
	// DropMetricStreamError records stream errors dropped because the error buffer was full.
	DropMetricStreamError DropMetric = "stream_errors_dropped"
)

// EmitDropMetric emits a counter of one for a single dropped message. Empty
// metadata values are left out of the fields.
func EmitDropMetric(log *logger.Log, metric DropMetric, exchange, market, symbol, stage string) {
	fields := logger.Fields{}
	if exchange != "" {
		fields["exchange"] = exchange
	}
	if market != "" {
		fields["market"] = market
	}
	if symbol != "" {
		fields["symbol"] = symbol
	}
	if stage != "" {
		fields["stage"] = stage
	}

	EmitMetric(log, "channel_drops", string(metric), 1, "counter", fields)
}
