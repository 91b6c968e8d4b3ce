// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tracing wires the progress core's save/recovery paths to
// OpenTelemetry: one span per save cycle (orchestrate) and per recovery
// (load, with enforce/merge as children).
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/mera-learn/progress-core/pkg/logging"
)

// tracerName is the instrumentation scope every span below is recorded
// under.
const tracerName = "github.com/mera-learn/progress-core"

// logSpanExporter is a trace.SpanExporter that records finished spans to
// the core's own structured logger. It gives the SDK a real consumer in a
// standalone deployment without requiring an OTLP collector; swapping in
// an OTLP exporter later is a one-line change at Init, not at any
// instrumented call site.
type logSpanExporter struct {
	log *logging.Logger
}

func (e *logSpanExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.log.Debug("trace span",
			"span", s.Name(),
			"trace_id", s.SpanContext().TraceID().String(),
			"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
		)
	}
	return nil
}

func (e *logSpanExporter) Shutdown(context.Context) error { return nil }

// Init installs a process-global TracerProvider backed by logSpanExporter
// and returns it so callers can Shutdown it on exit. Safe to call once per
// process; Tracer() works against the no-op provider if Init is never
// called (e.g. in unit tests).
func Init(serviceName string, log *logging.Logger) (*sdktrace.TracerProvider, error) {
	if log == nil {
		log = logging.Default()
	}
	res, err := resource.New(context.Background(),
		resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&logSpanExporter{log: log}, sdktrace.WithBatchTimeout(time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the core's instrumentation-scope Tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
