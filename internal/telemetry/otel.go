package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Instruments mirrors a run Summary as OpenTelemetry counters and a
// histogram, backed by an in-process ManualReader so a host process can
// either scrape the structured JSON Summary directly or attach a real OTLP
// exporter later without touching call sites.
type Instruments struct {
	mu sync.Mutex

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	llmCalls      metric.Int64Counter
	tokensIn      metric.Int64Counter
	tokensOut     metric.Int64Counter
	okEvents      metric.Int64Counter
	failEvents    metric.Int64Counter
	skippedEvents metric.Int64Counter
	budgetBreach  metric.Int64Counter
	escalations   metric.Int64Counter
	runDuration   metric.Float64Histogram
}

// NewInstruments builds a fresh meter provider and registers every
// instrument the package records. Metric emission is best-effort: a
// creation failure degrades that instrument to a no-op rather than
// propagating, since metrics must never affect run outcome.
func NewInstruments(meterName string) *Instruments {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter(meterName)

	inst := &Instruments{reader: reader, provider: provider, meter: meter}
	inst.llmCalls, _ = meter.Int64Counter("taskgraph.llm_calls")
	inst.tokensIn, _ = meter.Int64Counter("taskgraph.tokens_in")
	inst.tokensOut, _ = meter.Int64Counter("taskgraph.tokens_out")
	inst.okEvents, _ = meter.Int64Counter("taskgraph.events.ok")
	inst.failEvents, _ = meter.Int64Counter("taskgraph.events.fail")
	inst.skippedEvents, _ = meter.Int64Counter("taskgraph.events.skipped")
	inst.budgetBreach, _ = meter.Int64Counter("taskgraph.budget_breaches")
	inst.escalations, _ = meter.Int64Counter("taskgraph.escalations_required")
	inst.runDuration, _ = meter.Float64Histogram("taskgraph.run_duration_seconds")
	return inst
}

// Record mirrors a Summary onto the registered instruments, tagged with the
// run's graph id.
func (i *Instruments) Record(ctx context.Context, s Summary) {
	if i == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("graph_id", s.GraphID))

	if i.llmCalls != nil {
		i.llmCalls.Add(ctx, int64(s.LLMCalls), attrs)
	}
	if i.tokensIn != nil {
		i.tokensIn.Add(ctx, s.TokensIn, attrs)
	}
	if i.tokensOut != nil {
		i.tokensOut.Add(ctx, s.TokensOut, attrs)
	}
	if i.okEvents != nil {
		i.okEvents.Add(ctx, int64(s.OKEvents), attrs)
	}
	if i.failEvents != nil {
		i.failEvents.Add(ctx, int64(s.FailEvents), attrs)
	}
	if i.skippedEvents != nil {
		i.skippedEvents.Add(ctx, int64(s.SkippedEvents), attrs)
	}
	if i.budgetBreach != nil {
		i.budgetBreach.Add(ctx, int64(s.BudgetBreachCount), attrs)
	}
	if i.escalations != nil {
		i.escalations.Add(ctx, int64(s.EscalationRequiredCount), attrs)
	}
	if i.runDuration != nil {
		i.runDuration.Record(ctx, s.TotalTimeS, metric.WithAttributes(attribute.String("graph_id", s.GraphID)))
	}
}

// Collect drains the current set of aggregated metrics from the manual
// reader, primarily for tests and for a host process that wants to scrape
// without a real OTLP exporter attached.
func (i *Instruments) Collect(ctx context.Context) (*metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if err := i.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	return &rm, nil
}
