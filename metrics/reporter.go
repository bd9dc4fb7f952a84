// Package metrics defines the pluggable Reporter interface agent.go calls
// directly (metrics.ReportNumberOfConnectedClients, metrics.ReportTimingFromCtx,
// mr.ReportGauge) plus the Prometheus and DataDog backends pitaya ships.
package metrics

import "context"

// Label names used across reporters.
const (
	ChannelCapacity = "channel_capacity"
	StageMailbox    = "stage_mailbox_depth"
	RequestTiming   = "request_duration"
)

// Reporter is the pluggable metrics sink. Implementations must be safe for
// concurrent use: the compute pool, I/O pool and transport loop all report.
type Reporter interface {
	ReportCount(metric string, tags map[string]string, count float64) error
	ReportGauge(metric string, tags map[string]string, value float64) error
	ReportSummary(metric string, tags map[string]string, valueMs float64) error
}

// ReportNumberOfConnectedClients reports the live client-connection gauge,
// exactly the call agent.go's newAgent/Close make after every session open/close.
func ReportNumberOfConnectedClients(reporters []Reporter, count int) {
	for _, r := range reporters {
		_ = r.ReportGauge("connected_clients", nil, float64(count))
	}
}

// ReportGauge is a convenience fan-out to every reporter.
func ReportGauge(reporters []Reporter, metric string, tags map[string]string, value float64) {
	for _, r := range reporters {
		_ = r.ReportGauge(metric, tags, value)
	}
}

// ReportTimingFromCtx reports a request/dispatch duration measured from the
// start time stamped by WithStartTime, tagging by whether err is non-nil,
// matching agent.go's write()/AnswerWithError call sites.
func ReportTimingFromCtx(ctx context.Context, reporters []Reporter, kind string, err error) {
	startedAt, ok := startTimeFromContext(ctx)
	if !ok {
		return
	}
	elapsedMs := float64(nowUnixMilli() - startedAt)
	status := "ok"
	if err != nil {
		status = "error"
	}
	for _, r := range reporters {
		_ = r.ReportSummary(RequestTiming, map[string]string{"kind": kind, "status": status}, elapsedMs)
	}
}
