package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const opsScopeName = "github.com/steveyegge/mcp-tasks/ops"

// opRecorder holds the instruments for the tool-call surface. Every
// operation gets a span and is counted in mcptasks.ops.* metrics.
type opRecorder struct {
	tracer   trace.Tracer
	ops      metric.Int64Counter
	dur      metric.Float64Histogram
	errs     metric.Int64Counter
	lockWait metric.Float64Histogram
}

var (
	recorderOnce sync.Once
	recorder     *opRecorder
)

// getRecorder builds the shared recorder on first use. Returns nil when
// telemetry is disabled so callers stay on the zero-overhead path.
func getRecorder() *opRecorder {
	recorderOnce.Do(func() {
		if !Enabled() {
			return
		}
		m := Meter(opsScopeName)
		ops, _ := m.Int64Counter("mcptasks.ops",
			metric.WithDescription("Total tool operations executed"),
		)
		dur, _ := m.Float64Histogram("mcptasks.ops.duration",
			metric.WithDescription("Tool operation duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		errs, _ := m.Int64Counter("mcptasks.ops.errors",
			metric.WithDescription("Total tool operation errors"),
		)
		lockWait, _ := m.Float64Histogram("mcptasks.lock.wait",
			metric.WithDescription("Time spent waiting for the tasks file lock in milliseconds"),
			metric.WithUnit("ms"),
		)
		recorder = &opRecorder{
			tracer:   Tracer(opsScopeName),
			ops:      ops,
			dur:      dur,
			errs:     errs,
			lockWait: lockWait,
		}
	})
	return recorder
}

// StartOp begins a span and timer for one tool operation. The returned
// finish func records duration and error status; both are no-ops when
// telemetry is disabled.
func StartOp(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	r := getRecorder()
	if r == nil {
		return ctx, func(error) {}
	}

	all := append([]attribute.KeyValue{attribute.String("mcptasks.op", name)}, attrs...)
	ctx, span := r.tracer.Start(ctx, "ops."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
	r.ops.Add(ctx, 1, metric.WithAttributes(all...))
	start := time.Now()

	return ctx, func(err error) {
		ms := float64(time.Since(start).Milliseconds())
		r.dur.Record(ctx, ms, metric.WithAttributes(all...))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.errs.Add(ctx, 1, metric.WithAttributes(all...))
		}
		span.End()
	}
}

// RecordLockWait records how long one mutation waited to acquire the tasks
// file lock.
func RecordLockWait(ctx context.Context, waited time.Duration) {
	r := getRecorder()
	if r == nil {
		return
	}
	r.lockWait.Record(ctx, float64(waited.Milliseconds()))
}
