package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ohjayaxel/syncengine/core"
)

// PrometheusRecorder adapts a prometheus registry to core.MetricsRecorder.
// Counter and histogram vectors are created lazily on first use; the tag keys
// seen on that first observation fix the label set for the metric's lifetime.
type PrometheusRecorder struct {
	namespace  string
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer

	mu         sync.Mutex
	counters   map[string]*counterEntry
	histograms map[string]*histogramEntry
}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

// NewPrometheusRecorder builds a recorder on its own registry. Use Handler to
// expose the scrape endpoint.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	return NewPrometheusRecorderWithRegistry(namespace, registry, registry)
}

func NewPrometheusRecorderWithRegistry(
	namespace string,
	registerer prometheus.Registerer,
	gatherer prometheus.Gatherer,
) *PrometheusRecorder {
	return &PrometheusRecorder{
		namespace:  sanitizeMetricName(namespace),
		registerer: registerer,
		gatherer:   gatherer,
		counters:   map[string]*counterEntry{},
		histograms: map[string]*histogramEntry{},
	}
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	entry := r.counter(name, tags)
	entry.vec.With(alignTags(entry.labels, tags)).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	entry := r.histogram(name, tags)
	entry.vec.With(alignTags(entry.labels, tags)).Observe(value)
}

// Handler serves the scrape endpoint for the recorder's gatherer.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) counter(name string, tags map[string]string) *counterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sanitizeMetricName(name)
	if entry, ok := r.counters[key]; ok {
		return entry
	}
	labels := tagKeys(tags)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      key,
		Help:      "Counter " + key,
	}, labels)
	r.registerer.MustRegister(vec)
	entry := &counterEntry{vec: vec, labels: labels}
	r.counters[key] = entry
	return entry
}

func (r *PrometheusRecorder) histogram(name string, tags map[string]string) *histogramEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sanitizeMetricName(name)
	if entry, ok := r.histograms[key]; ok {
		return entry
	}
	labels := tagKeys(tags)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      key,
		Help:      "Histogram " + key,
		Buckets:   prometheus.DefBuckets,
	}, labels)
	r.registerer.MustRegister(vec)
	entry := &histogramEntry{vec: vec, labels: labels}
	r.histograms[key] = entry
	return entry
}

func tagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, sanitizeMetricName(key))
	}
	sort.Strings(keys)
	return keys
}

// alignTags projects the observed tags onto the metric's fixed label set.
// Missing keys become empty values; unknown keys are dropped.
func alignTags(labels []string, tags map[string]string) prometheus.Labels {
	aligned := make(prometheus.Labels, len(labels))
	sanitized := make(map[string]string, len(tags))
	for key, value := range tags {
		sanitized[sanitizeMetricName(key)] = value
	}
	for _, label := range labels {
		aligned[label] = sanitized[label]
	}
	return aligned
}

func sanitizeMetricName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch == '_':
			b.WriteRune(ch)
		case ch >= '0' && ch <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(ch)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
