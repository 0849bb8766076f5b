package metrics

import (
	"sort"
	"sync"
	"time"

	"gateflow/logger"
)

// Metric is one emitted measurement as seen by registered handlers.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

type MetricHandler func(Metric)

// MetricHandlerID identifies a registration. Zero is never issued.
type MetricHandlerID uint64

// handlerRegistry fans metrics out to sinks such as the Prometheus exporter
// and tests. Handlers run on the emitting goroutine in registration order.
type handlerRegistry struct {
	mu     sync.RWMutex
	lastID MetricHandlerID
	byID   map[MetricHandlerID]MetricHandler
}

var handlers = newHandlerRegistry()

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{byID: make(map[MetricHandlerID]MetricHandler)}
}

func (r *handlerRegistry) add(h MetricHandler) MetricHandlerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	r.byID[r.lastID] = h
	return r.lastID
}

func (r *handlerRegistry) remove(id MetricHandlerID) {
	r.mu.Lock()
	delete(r.byID, id)
	r.mu.Unlock()
}

func (r *handlerRegistry) reset() {
	r.mu.Lock()
	r.byID = make(map[MetricHandlerID]MetricHandler)
	r.lastID = 0
	r.mu.Unlock()
}

// snapshot copies the handlers out so none of them runs under the lock.
func (r *handlerRegistry) snapshot() []MetricHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.byID) == 0 {
		return nil
	}
	ids := make([]MetricHandlerID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]MetricHandler, len(ids))
	for i, id := range ids {
		out[i] = r.byID[id]
	}
	return out
}

// RegisterMetricHandler subscribes h to every emitted metric. A nil handler
// is ignored and yields 0.
func RegisterMetricHandler(h MetricHandler) MetricHandlerID {
	if h == nil {
		return 0
	}
	return handlers.add(h)
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id != 0 {
		handlers.remove(id)
	}
}

// recordMetric logs the metric line and hands a copy to the handlers. It
// reports false when the metric is unnamed or its family is switched off.
func recordMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if f, ok := featureForMetric(name); ok && !IsFeatureEnabled(f) {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}
	if log == nil {
		log = logger.GetLogger()
	}

	m := Metric{
		Timestamp: time.Now(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    cloneFields(fields),
	}

	line := cloneFields(m.Fields)
	line["metric"] = name
	line["metric_type"] = metricType
	line["value"] = value
	log.WithComponent(component).WithFields(line).Info("metric")

	for _, h := range handlers.snapshot() {
		h(m)
	}
	return m, true
}

func cloneFields(fields logger.Fields) logger.Fields {
	out := make(logger.Fields, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	return out
}
