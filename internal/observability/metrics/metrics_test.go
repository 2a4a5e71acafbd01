package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsMemberLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "matched"),
		attribute.String("user_id", "456"),
		attribute.String("match_kind", "parent"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("user_id must not become a metric label")
		}
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.RecordAllocation(context.Background(), "matched", "child")
	m.RecordPayout(context.Background(), "created", 10, true)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordAllocation(context.Background(), "matched", "parent")
	m.RecordSecondaryCredit(context.Background(), "first_join")
	m.RecordSpotReward(context.Background())
}
