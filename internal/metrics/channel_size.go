package metrics

import (
	"context"
	"time"

	"gateflow/internal/channel"
	"gateflow/logger"
)

// StartChannelSizeMetrics emits buffer occupancy for the pipeline channels
// every interval until ctx is cancelled. A non-positive interval means one
// second.
func StartChannelSizeMetrics(ctx context.Context, channels *channel.Channels, interval time.Duration) {
	if !IsFeatureEnabled(FeatureChannelSize) {
		return
	}
	if channels == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	log := logger.GetLogger()
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				EmitChannelSizes(log, channels)
			}
		}
	}()
}

// EmitChannelSizes emits one gauge per pipeline buffer.
func EmitChannelSizes(log *logger.Log, channels *channel.Channels) {
	const component = "channel_buffers"
	gauge := func(name string, length, capacity int) {
		EmitMetric(log, component, name+"_buffer_length", length, "gauge", logger.Fields{
			"buffer":   name,
			"capacity": capacity,
		})
	}

	gauge("raw", len(channels.Raw), cap(channels.Raw))
	gauge("norm", len(channels.Norm), cap(channels.Norm))
	if channels.Stream != nil {
		gauge("stream", len(channels.Stream), cap(channels.Stream))
	}
	gauge("error", len(channels.Errors), cap(channels.Errors))
}
