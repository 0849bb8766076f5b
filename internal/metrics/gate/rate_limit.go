// Package gatemetrics reports Gate's per-endpoint rate limit headers.
package gatemetrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"gateflow/internal/metrics"
	"gateflow/logger"
)

const (
	HeaderRemaining = "X-Gate-RateLimit-Requests-Remain"
	HeaderLimit     = "X-Gate-RateLimit-Limit"
	HeaderReset     = "X-Gate-RateLimit-Reset-Timestamp"
)

// RateLimit is the quota state Gate reported on one response.
type RateLimit struct {
	Remaining int64
	Limit     int64
	Reset     time.Time
}

// Used returns the share of the quota already consumed, in [0, 1].
func (r RateLimit) Used() float64 {
	if r.Limit <= 0 {
		return 0
	}
	used := float64(r.Limit-r.Remaining) / float64(r.Limit)
	if used < 0 {
		return 0
	}
	if used > 1 {
		return 1
	}
	return used
}

// ParseRateLimit reads the rate limit headers. ok is false when Gate did not
// send the remaining/limit pair.
func ParseRateLimit(header http.Header) (RateLimit, bool) {
	remaining, okRemain := parseInt(header.Get(HeaderRemaining))
	limit, okLimit := parseInt(header.Get(HeaderLimit))
	if !okRemain || !okLimit {
		return RateLimit{}, false
	}

	rl := RateLimit{Remaining: remaining, Limit: limit}
	if ts, ok := parseInt(header.Get(HeaderReset)); ok && ts > 0 {
		// Some endpoints answer in milliseconds.
		if ts > 1e12 {
			rl.Reset = time.UnixMilli(ts)
		} else {
			rl.Reset = time.Unix(ts, 0)
		}
	}
	return rl, true
}

// ReportRateLimit parses header and emits remaining, limit and usage gauges
// tagged with the endpoint path.
func ReportRateLimit(log *logger.Log, header http.Header, component, endpoint string) (RateLimit, bool) {
	rl, ok := ParseRateLimit(header)
	if !ok {
		return rl, false
	}

	fields := logger.Fields{"exchange": "gate", "endpoint": endpoint}
	metrics.EmitMetric(log, component, "rate_limit_remaining", rl.Remaining, "gauge", fields)
	metrics.EmitMetric(log, component, "rate_limit_limit", rl.Limit, "gauge", fields)
	metrics.EmitMetric(log, component, "rate_limit_used", rl.Used()*100, "gauge", logger.Fields{
		"exchange": "gate",
		"endpoint": endpoint,
		"unit":     "percent",
	})
	return rl, true
}

func parseInt(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
