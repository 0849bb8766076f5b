package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gateflow/logger"
)

// Exporter mirrors emitted metrics into a Prometheus registry. Counters are
// added, gauges are set. Series are keyed by component and metric name.
type Exporter struct {
	registry *prometheus.Registry
	counters *prometheus.CounterVec
	gauges   *prometheus.GaugeVec
	handler  MetricHandlerID

	mu     sync.Mutex
	server *http.Server
}

func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()
	e := &Exporter{
		registry: registry,
		counters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateflow_events_total",
			Help: "Counter metrics emitted by gateflow components.",
		}, []string{"component", "metric"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateflow_gauge",
			Help: "Gauge metrics emitted by gateflow components.",
		}, []string{"component", "metric"}),
	}
	registry.MustRegister(e.counters, e.gauges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	e.handler = RegisterMetricHandler(e.observe)
	return e
}

func (e *Exporter) observe(m Metric) {
	v, ok := toFloat64(m.Value)
	if !ok {
		return
	}
	switch strings.ToLower(m.Type) {
	case "gauge":
		e.gauges.WithLabelValues(m.Component, m.Name).Set(v)
	default:
		if v < 0 {
			return
		}
		e.counters.WithLabelValues(m.Component, m.Name).Add(v)
	}
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background. Listen errors are logged.
func (e *Exporter) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	e.mu.Lock()
	e.server = srv
	e.mu.Unlock()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().WithComponent("prometheus").WithError(err).Error("metrics server failed")
		}
	}()
	logger.GetLogger().WithComponent("prometheus").WithFields(logger.Fields{"addr": addr}).Info("serving Prometheus metrics")
}

// Close detaches the exporter and stops the HTTP server if one is running.
func (e *Exporter) Close(ctx context.Context) error {
	UnregisterMetricHandler(e.handler)
	e.mu.Lock()
	srv := e.server
	e.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
