package metrics

import (
	"strings"
	"sync/atomic"

	"gateflow/config"
)

// Feature names an optional metric family that can be switched off in config.
type Feature int

const (
	FeatureRateLimit Feature = iota
	FeatureChannelSize
	FeatureSequence
)

var features atomic.Pointer[config.MetricsConfig]

func init() {
	features.Store(&config.MetricsConfig{RateLimit: true, ChannelSize: true, Sequence: true})
}

// Configure replaces the enabled metric families.
func Configure(cfg config.MetricsConfig) {
	c := cfg
	features.Store(&c)
}

func IsFeatureEnabled(f Feature) bool {
	cfg := features.Load()
	switch f {
	case FeatureRateLimit:
		return cfg.RateLimit
	case FeatureChannelSize:
		return cfg.ChannelSize
	case FeatureSequence:
		return cfg.Sequence
	default:
		return true
	}
}

// featureForMetric maps a metric name onto the family that gates it.
func featureForMetric(name string) (Feature, bool) {
	switch {
	case strings.HasPrefix(name, "rate_limit"):
		return FeatureRateLimit, true
	case strings.HasSuffix(name, "_buffer_length"):
		return FeatureChannelSize, true
	case strings.HasPrefix(name, "sequence_"):
		return FeatureSequence, true
	default:
		return 0, false
	}
}
