// Package spantrace wraps the control goroutine's two entry points
// into the core — OnTick and OnMsg — in OpenTelemetry spans, the same
// way the teacher's lookuptrace package wrapped selected gRPC methods.
// The core itself stays free of any tracing import: spantrace is
// called from internal/mailbox, which already owns every other piece
// of I/O the core doesn't know about.
package spantrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("p2pstreamd/spantrace")

// Tick wraps one OnTick invocation — Chord stabilization, finger
// fixing, predecessor checking, router sync, and pubsub lease
// expiry — in a single span.
func Tick(ctx context.Context, onTick func(now int64), now int64) {
	_, span := tracer.Start(ctx, "runner.OnTick", trace.WithAttributes(
		attribute.Int64("now_ms", now),
	))
	defer span.End()
	onTick(now)
}

// Recv wraps one dispatched inbound event in a span named after the
// Go type of the event, so a trace backend can break down time spent
// per message kind without the core needing to know spans exist.
func Recv(ctx context.Context, kind string, dispatch func()) {
	_, span := tracer.Start(ctx, "runner.OnMsg", trace.WithAttributes(
		attribute.String("event.kind", kind),
	))
	defer span.End()
	dispatch()
}
