package metricscore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.uber.org/zap"
)

// OTelExporter pushes Collector snapshots through an OpenTelemetry meter
// backed by a Prometheus exporter, following the teacher's
// internal/observability/otel.go setup almost verbatim but instrumenting
// pool metrics instead of HTTP/message counters.
type OTelExporter struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	queueDepth     metric.Float64Gauge
	latencyP95     metric.Float64Gauge
	workersBusy    metric.Int64Gauge
	tasksCompleted metric.Int64Counter
	tasksFailed    metric.Int64Counter

	lastCompleted int64
	lastFailed    int64

	logger *zap.Logger
}

// NewOTelExporter mirrors SetupOpenTelemetry: build a resource, a
// Prometheus metric exporter, and a meter provider, then declare the
// instruments this collector will update on each export tick.
func NewOTelExporter(serviceName string, logger *zap.Logger) (*OTelExporter, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	metricExporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(metricExporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("gopool")

	queueDepth, err := meter.Float64Gauge("gopool_queue_depth")
	if err != nil {
		return nil, nil, err
	}
	latencyP95, err := meter.Float64Gauge("gopool_latency_p95_ms")
	if err != nil {
		return nil, nil, err
	}
	workersBusy, err := meter.Int64Gauge("gopool_workers_busy")
	if err != nil {
		return nil, nil, err
	}
	tasksCompleted, err := meter.Int64Counter("gopool_tasks_completed_total")
	if err != nil {
		return nil, nil, err
	}
	tasksFailed, err := meter.Int64Counter("gopool_tasks_failed_total")
	if err != nil {
		return nil, nil, err
	}

	exp := &OTelExporter{
		provider:       provider,
		meter:          meter,
		queueDepth:     queueDepth,
		latencyP95:     latencyP95,
		workersBusy:    workersBusy,
		tasksCompleted: tasksCompleted,
		tasksFailed:    tasksFailed,
		logger:         logger,
	}

	logger.Info("pool OpenTelemetry metrics initialized", zap.String("service", serviceName))

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("error shutting down pool metrics exporter", zap.Error(err))
		}
	}

	return exp, cleanup, nil
}

// Push records one snapshot worth of observations into the OTel
// instruments; call this from Collector.StartExport's callback.
func (e *OTelExporter) Push(ctx context.Context, snap Snapshot) {
	e.queueDepth.Record(ctx, float64(snap.Queue.Depth))
	e.latencyP95.Record(ctx, snap.LatencyP95)

	busy := 0
	var completed, failed int64
	for _, w := range snap.Workers {
		if w.TasksCompleted+w.TasksFailed > 0 {
			busy++
		}
		completed += w.TasksCompleted
		failed += w.TasksFailed
	}
	e.workersBusy.Record(ctx, int64(busy))
	// Worker stats are cumulative totals; counters want deltas since the
	// last push.
	if completed > e.lastCompleted {
		e.tasksCompleted.Add(ctx, completed-e.lastCompleted)
	}
	if failed > e.lastFailed {
		e.tasksFailed.Add(ctx, failed-e.lastFailed)
	}
	e.lastCompleted, e.lastFailed = completed, failed
}
