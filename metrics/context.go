package metrics

import (
	"context"

	"github.com/ulala-x/playhouse/clock"
)

type startTimeKeyType struct{}

var startTimeKey = startTimeKeyType{}

// WithStartTime stamps ctx with the current time so ReportTimingFromCtx can
// later compute an elapsed duration. Callers stamp ctx themselves; the
// stage executor and the API dispatcher do not call it.
func WithStartTime(ctx context.Context, c clock.Clock) context.Context {
	return context.WithValue(ctx, startTimeKey, c.Now().UnixMilli())
}

func startTimeFromContext(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(startTimeKey).(int64)
	return v, ok
}

func nowUnixMilli() int64 {
	return clock.Default.Now().UnixMilli()
}
