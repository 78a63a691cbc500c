package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBucketsMS = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

// Registry keeps the label-keyed call style (IncCounter/ObserveHistogram by name) on top of
// a dedicated prometheus registry. Unknown names and label mismatches are dropped.
type Registry struct {
	mu         sync.RWMutex
	reg        *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := &Registry{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	r.reg.MustRegister(collectors.NewGoCollector())
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.RegisterCounter("launcher_requests_total", "Total create_instance requests by outcome.", "outcome")
	r.RegisterCounter("launcher_launch_total", "Total launch attempts by provider and status.", "provider", "status")
	r.RegisterHistogram("launcher_launch_latency_ms", "Launch latency in milliseconds by provider and status.", latencyBucketsMS, "provider", "status")
	r.RegisterCounter("launcher_provider_operations_total", "Total provider API calls by provider, operation, and status.", "provider", "op", "status")
	r.RegisterHistogram("launcher_provider_operation_latency_ms", "Provider API call latency in milliseconds by provider, operation, and status.", latencyBucketsMS, "provider", "op", "status")
}

func (r *Registry) RegisterCounter(name, help string, labelNames ...string) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.counters[name]; exists {
		return
	}
	r.reg.MustRegister(vec)
	r.counters[name] = vec
}

func (r *Registry) RegisterHistogram(name, help string, buckets []float64, labelNames ...string) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.histograms[name]; exists {
		return
	}
	r.reg.MustRegister(vec)
	r.histograms[name] = vec
}

func (r *Registry) IncCounter(name string, labels map[string]string) {
	r.mu.RLock()
	vec, ok := r.counters[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	c.Inc()
}

func (r *Registry) ObserveHistogram(name string, value float64, labels map[string]string) {
	r.mu.RLock()
	vec, ok := r.histograms[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	o, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	o.Observe(value)
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewRegistry()
)

func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

func ResetDefaultForTest() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewRegistry()
}
