package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/lookahead/precache"
)

// EngineRecorder 将引擎事件转为 OTel 指标，随 OTLP 管道导出
type EngineRecorder struct {
	lookups       metric.Int64Counter
	enqueues      metric.Int64Counter
	generations   metric.Int64Counter
	genDuration   metric.Float64Histogram
	evictions     metric.Int64Counter
	invalidations metric.Int64Counter
	queueDepth    metric.Int64Gauge
	inFlight      metric.Int64Gauge
}

var _ precache.Recorder = (*EngineRecorder)(nil)

// NewEngineRecorder 在给定 Meter 上创建引擎指标
func NewEngineRecorder(meter metric.Meter) (*EngineRecorder, error) {
	r := &EngineRecorder{}
	var errs []error
	var err error

	r.lookups, err = meter.Int64Counter("precache.lookups",
		metric.WithDescription("Result cache lookups"))
	errs = append(errs, err)
	r.enqueues, err = meter.Int64Counter("precache.enqueues",
		metric.WithDescription("Speculative requests offered to the queue"))
	errs = append(errs, err)
	r.generations, err = meter.Int64Counter("precache.generations",
		metric.WithDescription("Generator calls"))
	errs = append(errs, err)
	r.genDuration, err = meter.Float64Histogram("precache.generation.duration",
		metric.WithDescription("Generator call duration"),
		metric.WithUnit("s"))
	errs = append(errs, err)
	r.evictions, err = meter.Int64Counter("precache.evictions",
		metric.WithDescription("Results evicted for capacity"))
	errs = append(errs, err)
	r.invalidations, err = meter.Int64Counter("precache.invalidations",
		metric.WithDescription("Trajectory invalidations"))
	errs = append(errs, err)
	r.queueDepth, err = meter.Int64Gauge("precache.queue.depth",
		metric.WithDescription("Requests waiting in the queue"))
	errs = append(errs, err)
	r.inFlight, err = meter.Int64Gauge("precache.queue.in_flight",
		metric.WithDescription("Requests handed to the worker"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *EngineRecorder) RecordLookup(hit bool) {
	r.lookups.Add(context.Background(), 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

func (r *EngineRecorder) RecordEnqueue(priority precache.Priority, accepted bool) {
	r.enqueues.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("priority", priority.String()),
		attribute.Bool("accepted", accepted),
	))
}

func (r *EngineRecorder) RecordGeneration(ev precache.GenerationEvent) {
	attrs := metric.WithAttributes(
		attribute.String("source", string(ev.Source)),
		attribute.Bool("error", ev.Err != nil),
		attribute.Bool("discarded", ev.Discarded),
	)
	r.generations.Add(context.Background(), 1, attrs)
	r.genDuration.Record(context.Background(), ev.Duration.Seconds(),
		metric.WithAttributes(attribute.String("source", string(ev.Source))))
}

func (r *EngineRecorder) RecordEviction(n int) {
	if n > 0 {
		r.evictions.Add(context.Background(), int64(n))
	}
}

func (r *EngineRecorder) RecordInvalidation(cleared int) {
	r.invalidations.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("cleared", cleared)))
}

func (r *EngineRecorder) RecordQueueState(depth, inFlight int) {
	r.queueDepth.Record(context.Background(), int64(depth))
	r.inFlight.Record(context.Background(), int64(inFlight))
}
