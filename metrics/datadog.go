package metrics

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
)

// DataDogReporter implements Reporter on top of github.com/DataDog/datadog-go,
// pitaya's other stock metrics backend (used for statsd/DogStatsD shops that
// don't scrape Prometheus).
type DataDogReporter struct {
	client *statsd.Client
	prefix string
}

// NewDataDogReporter dials a DogStatsD agent at addr.
func NewDataDogReporter(addr, prefix string) (*DataDogReporter, error) {
	client, err := statsd.New(addr, statsd.WithNamespace(prefix))
	if err != nil {
		return nil, err
	}
	return &DataDogReporter{client: client, prefix: prefix}, nil
}

func (d *DataDogReporter) ReportCount(metric string, tags map[string]string, count float64) error {
	return d.client.Count(metric, int64(count), toTagSlice(tags), 1)
}

func (d *DataDogReporter) ReportGauge(metric string, tags map[string]string, value float64) error {
	return d.client.Gauge(metric, value, toTagSlice(tags), 1)
}

func (d *DataDogReporter) ReportSummary(metric string, tags map[string]string, valueMs float64) error {
	return d.client.Timing(metric, durationFromMs(valueMs), toTagSlice(tags), 1)
}

func toTagSlice(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, k+":"+v)
	}
	return out
}

func durationFromMs(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
