// Package tracing wraps opentracing-go + jaeger-client-go, called directly
// by byte4fun-pitaya/agent/agent.go (tracing.FinishSpan, tracing.LogError,
// opentracing.SpanFromContext) rather than through an abstraction layer.
// In PlayHouse only agent.Agent calls these helpers; the stage executor and
// the request correlator start no spans.
package tracing

import (
	"context"
	"fmt"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// Init configures the global opentracing.Tracer to report to a local Jaeger
// agent, returning a closer to flush spans on shutdown.
func Init(serviceName string) (opentracing.Tracer, func() error, error) {
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: false,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	return tracer, closer.Close, nil
}

// StartSpan starts a child span under ctx's current span (if any) named
// operationName, tagging it with the route header's identifying fields.
func StartSpan(ctx context.Context, operationName string, tags map[string]string) (opentracing.Span, context.Context) {
	span, spanCtx := opentracing.StartSpanFromContext(ctx, operationName)
	for k, v := range tags {
		span.SetTag(k, v)
	}
	return span, spanCtx
}

// FinishSpan finishes the span carried by ctx, marking it an error span
// when err != nil — the exact call agent.go makes from write()/AnswerWithError.
func FinishSpan(ctx context.Context, err error) {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
	}
	span.Finish()
}

// LogError logs an error message onto an existing span.
func LogError(span opentracing.Span, message string) {
	ext.Error.Set(span, true)
	span.LogKV("event", "error", "message", message)
}

// Errorf finishes ctx's span (if any) with a formatted error without
// requiring the caller to build an error value first.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	FinishSpan(ctx, fmt.Errorf(format, args...))
}
