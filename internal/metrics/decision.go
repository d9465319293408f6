package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DecisionMetrics records authorization pipeline outcomes.
type DecisionMetrics interface {
	// RecordDecision counts one pipeline decision. Stage and reason are empty
	// for authorized outcomes.
	RecordDecision(ctx context.Context, authorized bool, stage, reason string)

	// RecordPipelineDuration records how long the pipeline took for one
	// request, labelled with the outcome.
	RecordPipelineDuration(ctx context.Context, authorized bool, duration time.Duration)
}

// decisionMetrics implements DecisionMetrics using OpenTelemetry instruments.
type decisionMetrics struct {
	decisionCounter metric.Int64Counter
	durationHisto   metric.Float64Histogram
}

// NewDecisionMetrics creates decision instruments on the given meter provider.
func NewDecisionMetrics(meterProvider metric.MeterProvider, namespace string) (DecisionMetrics, error) {
	meter := meterProvider.Meter(namespace)

	decisionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_security_decisions_total", namespace),
		metric.WithDescription("Total number of authorization pipeline decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_security_pipeline_duration_seconds", namespace),
		metric.WithDescription("Authorization pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline duration histogram: %w", err)
	}

	return &decisionMetrics{
		decisionCounter: decisionCounter,
		durationHisto:   durationHisto,
	}, nil
}

func (d *decisionMetrics) RecordDecision(ctx context.Context, authorized bool, stage, reason string) {
	d.decisionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("authorized", authorized),
			attribute.String("stage", stage),
			attribute.String("reason", reason),
		),
	)
}

func (d *decisionMetrics) RecordPipelineDuration(ctx context.Context, authorized bool, duration time.Duration) {
	d.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.Bool("authorized", authorized),
		),
	)
}

// NoOpDecisionMetrics is used when metrics are disabled.
type NoOpDecisionMetrics struct{}

// NewNoOpDecisionMetrics creates a no-op DecisionMetrics implementation.
func NewNoOpDecisionMetrics() DecisionMetrics {
	return &NoOpDecisionMetrics{}
}

// RecordDecision does nothing when metrics are disabled.
func (n *NoOpDecisionMetrics) RecordDecision(ctx context.Context, authorized bool, stage, reason string) {
}

// RecordPipelineDuration does nothing when metrics are disabled.
func (n *NoOpDecisionMetrics) RecordPipelineDuration(
	ctx context.Context,
	authorized bool,
	duration time.Duration,
) {
}
