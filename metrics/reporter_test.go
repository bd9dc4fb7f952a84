package metrics

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSummary struct {
	metric  string
	tags    map[string]string
	valueMs float64
}

type fakeReporter struct {
	mu        sync.Mutex
	gauges    map[string]float64
	summaries []recordedSummary
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{gauges: make(map[string]float64)}
}

func (r *fakeReporter) ReportCount(metric string, tags map[string]string, count float64) error {
	return nil
}

func (r *fakeReporter) ReportGauge(metric string, tags map[string]string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[metric] = value
	return nil
}

func (r *fakeReporter) ReportSummary(metric string, tags map[string]string, valueMs float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, recordedSummary{metric: metric, tags: tags, valueMs: valueMs})
	return nil
}

func TestReportNumberOfConnectedClients_FansOutToEveryReporter(t *testing.T) {
	r1, r2 := newFakeReporter(), newFakeReporter()
	ReportNumberOfConnectedClients([]Reporter{r1, r2}, 5)

	assert.Equal(t, float64(5), r1.gauges["connected_clients"])
	assert.Equal(t, float64(5), r2.gauges["connected_clients"])
}

func TestReportGauge_FansOutToEveryReporter(t *testing.T) {
	r1, r2 := newFakeReporter(), newFakeReporter()
	ReportGauge([]Reporter{r1, r2}, "stage_mailbox_depth", map[string]string{"stage": "1"}, 3)

	assert.Equal(t, float64(3), r1.gauges["stage_mailbox_depth"])
	assert.Equal(t, float64(3), r2.gauges["stage_mailbox_depth"])
}

func TestReportTimingFromCtx_NoStartTime_NoOp(t *testing.T) {
	r := newFakeReporter()
	ReportTimingFromCtx(context.Background(), []Reporter{r}, "handler", nil)
	assert.Empty(t, r.summaries)
}

func TestReportTimingFromCtx_TagsStatusByError(t *testing.T) {
	r := newFakeReporter()

	ctx := WithStartTime(context.Background(), clockStub{})
	time.Sleep(time.Millisecond)

	ReportTimingFromCtx(ctx, []Reporter{r}, "handler", nil)
	require.Len(t, r.summaries, 1)
	assert.Equal(t, "ok", r.summaries[0].tags["status"])
	assert.GreaterOrEqual(t, r.summaries[0].valueMs, float64(0))

	ReportTimingFromCtx(ctx, []Reporter{r}, "handler", fmt.Errorf("boom"))
	require.Len(t, r.summaries, 2)
	assert.Equal(t, "error", r.summaries[1].tags["status"])
}

// clockStub defers to the real wall clock, same as clock.Default, so the
// elapsed-time computation (which always reads clock.Default internally)
// stays monotonic with the stamped start time.
type clockStub struct{}

func (clockStub) Now() time.Time { return time.Now() }
