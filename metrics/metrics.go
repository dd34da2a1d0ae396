// Package metrics wraps prometheus/client_golang behind the small
// Counter/Gauge/Histogram meter interfaces the rest of the tree uses, in
// the style of the teacher's api/utils/http.go (metrics.CounterVec,
// metrics.HistogramVec, metrics.BucketHTTPReqs) and cmd/thor/node's
// telemetry.LazyLoad pattern for metrics defined as package-level vars
// before the registry necessarily exists yet.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BucketHTTPReqs mirrors the teacher's request-duration histogram
// buckets (milliseconds).
var BucketHTTPReqs = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var registry = prometheus.NewRegistry()

// Handler exposes the registry for a /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// CountMeter is a simple counter.
type CountMeter interface {
	Add(n int64)
}

// CountVecMeter is a labeled counter.
type CountVecMeter interface {
	AddWithLabel(n int64, labels map[string]string)
}

// GaugeMeter is a simple gauge.
type GaugeMeter interface {
	Set(n int64)
}

// HistogramMeter is an unlabeled histogram.
type HistogramMeter interface {
	Observe(n int64)
}

// HistogramVecMeter is a labeled histogram.
type HistogramVecMeter interface {
	ObserveWithLabels(n int64, labels map[string]string)
}

type counter struct{ c prometheus.Counter }

func (c *counter) Add(n int64) { c.c.Add(float64(n)) }

type countVec struct {
	v    *prometheus.CounterVec
	keys []string
}

func (c *countVec) AddWithLabel(n int64, labels map[string]string) {
	c.v.With(toLabels(c.keys, labels)).Add(float64(n))
}

type gauge struct{ g prometheus.Gauge }

func (g *gauge) Set(n int64) { g.g.Set(float64(n)) }

type histogram struct{ h prometheus.Histogram }

func (h *histogram) Observe(n int64) { h.h.Observe(float64(n)) }

type histogramVec struct {
	v    *prometheus.HistogramVec
	keys []string
}

func (h *histogramVec) ObserveWithLabels(n int64, labels map[string]string) {
	h.v.With(toLabels(h.keys, labels)).Observe(float64(n))
}

func toLabels(keys []string, m map[string]string) prometheus.Labels {
	out := make(prometheus.Labels, len(keys))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}

// Counter registers (or returns the existing) unlabeled counter named
// name.
func Counter(name string) CountMeter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name})
	if err := registry.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &counter{are.ExistingCollector.(prometheus.Counter)}
		}
		panic(err)
	}
	return &counter{c}
}

// CounterVec registers a counter labeled by the given keys.
func CounterVec(name string, labels []string) CountVecMeter {
	v := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labels)
	if err := registry.Register(v); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &countVec{are.ExistingCollector.(*prometheus.CounterVec), labels}
		}
		panic(err)
	}
	return &countVec{v, labels}
}

// Gauge registers an unlabeled gauge.
func Gauge(name string) GaugeMeter {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name})
	if err := registry.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &gauge{are.ExistingCollector.(prometheus.Gauge)}
		}
		panic(err)
	}
	return &gauge{g}
}

// Histogram registers an unlabeled histogram with explicit bucket
// bounds.
func Histogram(name string, buckets []float64) HistogramMeter {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Buckets: buckets})
	if err := registry.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &histogram{are.ExistingCollector.(prometheus.Histogram)}
		}
		panic(err)
	}
	return &histogram{h}
}

// HistogramVec registers a histogram labeled by the given keys.
func HistogramVec(name string, labels []string, buckets []float64) HistogramVecMeter {
	v := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Buckets: buckets}, labels)
	if err := registry.Register(v); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &histogramVec{are.ExistingCollector.(*prometheus.HistogramVec), labels}
		}
		panic(err)
	}
	return &histogramVec{v, labels}
}

// LazyLoad defers construction of a metric until first use, so
// package-level metric vars (declared before the registry is guaranteed
// ready) register on demand instead of at init time.
func LazyLoad[T any](build func() T) func() T {
	var (
		once sync.Once
		val  T
	)
	return func() T {
		once.Do(func() { val = build() })
		return val
	}
}
