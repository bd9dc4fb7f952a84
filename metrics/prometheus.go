package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusReporter implements Reporter on top of
// github.com/prometheus/client_golang, one of pitaya's stock metrics backends.
type PrometheusReporter struct {
	namespace string
	registry  *prometheus.Registry
	gauges    map[string]*prometheus.GaugeVec
	counters  map[string]*prometheus.CounterVec
	summaries map[string]*prometheus.SummaryVec
}

// NewPrometheusReporter builds a PrometheusReporter registered against its
// own registry (callers expose it via promhttp.HandlerFor, outside this
// core's scope per spec 1's "HTTP admin endpoints" exclusion).
func NewPrometheusReporter(namespace string) *PrometheusReporter {
	return &PrometheusReporter{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		gauges:    make(map[string]*prometheus.GaugeVec),
		counters:  make(map[string]*prometheus.CounterVec),
		summaries: make(map[string]*prometheus.SummaryVec),
	}
}

func (p *PrometheusReporter) Registry() *prometheus.Registry { return p.registry }

func (p *PrometheusReporter) ReportCount(metric string, tags map[string]string, count float64) error {
	vec := p.counterVec(metric, labelNames(tags))
	vec.With(toLabels(tags)).Add(count)
	return nil
}

func (p *PrometheusReporter) ReportGauge(metric string, tags map[string]string, value float64) error {
	vec := p.gaugeVec(metric, labelNames(tags))
	vec.With(toLabels(tags)).Set(value)
	return nil
}

func (p *PrometheusReporter) ReportSummary(metric string, tags map[string]string, valueMs float64) error {
	vec := p.summaryVec(metric, labelNames(tags))
	vec.With(toLabels(tags)).Observe(valueMs)
	return nil
}

func (p *PrometheusReporter) gaugeVec(metric string, labels []string) *prometheus.GaugeVec {
	if vec, ok := p.gauges[metric]; ok {
		return vec
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace, Name: sanitize(metric),
	}, labels)
	p.registry.MustRegister(vec)
	p.gauges[metric] = vec
	return vec
}

func (p *PrometheusReporter) counterVec(metric string, labels []string) *prometheus.CounterVec {
	if vec, ok := p.counters[metric]; ok {
		return vec
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace, Name: sanitize(metric),
	}, labels)
	p.registry.MustRegister(vec)
	p.counters[metric] = vec
	return vec
}

func (p *PrometheusReporter) summaryVec(metric string, labels []string) *prometheus.SummaryVec {
	if vec, ok := p.summaries[metric]; ok {
		return vec
	}
	vec := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: p.namespace, Name: sanitize(metric),
	}, labels)
	p.registry.MustRegister(vec)
	p.summaries[metric] = vec
	return vec
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	return names
}

func toLabels(tags map[string]string) prometheus.Labels {
	l := make(prometheus.Labels, len(tags))
	for k, v := range tags {
		l[k] = v
	}
	return l
}

func sanitize(metric string) string {
	return strings.ReplaceAll(metric, ".", "_")
}
