package orchestrator

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/roach88/hivelog/internal/orchestrator"

type metrics struct {
	appends        metric.Int64Counter
	appendFailures metric.Int64Counter
	deliveries     metric.Int64Counter
	handlerPanics  metric.Int64Counter
	resumes        metric.Int64Counter
}

// newMetrics registers the orchestrator counters. Instruments that fail to
// register fall back to no-ops and are logged.
func newMetrics(meter metric.Meter, logger *slog.Logger) *metrics {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	fallback := noop.NewMeterProvider().Meter(meterName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Warn("metric registration failed", "name", name, "error", err)
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}
	return &metrics{
		appends:        counter("hivelog.orchestrator.appends", "Events appended through the orchestrator"),
		appendFailures: counter("hivelog.orchestrator.append_failures", "Appends rejected by the store"),
		deliveries:     counter("hivelog.orchestrator.deliveries", "Successful subscriber deliveries"),
		handlerPanics:  counter("hivelog.orchestrator.handler_panics", "Subscriber panics recovered during delivery"),
		resumes:        counter("hivelog.orchestrator.resumes", "Projection rebuilds from the log"),
	}
}
