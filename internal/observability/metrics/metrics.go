package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes reward engine instruments.
type Metrics struct {
	allocations metric.Int64Counter
	matches     metric.Int64Counter
	secondary   metric.Int64Counter
	spot        metric.Int64Counter
	payouts     metric.Int64Counter
	payoutGross metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "rewardzway"
	}
	meter := provider.Meter(name)

	allocations, err := meter.Int64Counter("rewardzway_allocations_total",
		metric.WithDescription("Reward allocations by outcome."))
	if err != nil {
		return nil, err
	}
	matches, err := meter.Int64Counter("rewardzway_prp_matches_total",
		metric.WithDescription("PRP pairings by match kind."))
	if err != nil {
		return nil, err
	}
	secondary, err := meter.Int64Counter("rewardzway_srp_credits_total",
		metric.WithDescription("Secondary reward credits by category."))
	if err != nil {
		return nil, err
	}
	spot, err := meter.Int64Counter("rewardzway_spot_rewards_total")
	if err != nil {
		return nil, err
	}
	payouts, err := meter.Int64Counter("rewardzway_payouts_total",
		metric.WithDescription("Weekly payout computations by outcome."))
	if err != nil {
		return nil, err
	}
	payoutGross, err := meter.Float64Histogram("rewardzway_payout_gross_amount",
		metric.WithDescription("Gross amount of newly created payouts."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		allocations: allocations,
		matches:     matches,
		secondary:   secondary,
		spot:        spot,
		payouts:     payouts,
		payoutGross: payoutGross,
	}, nil
}

// RecordAllocation counts an allocation attempt and, when paired, its match kind.
func (m *Metrics) RecordAllocation(ctx context.Context, outcome, matchKind string) {
	if m == nil {
		return
	}
	m.allocations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
	if matchKind == "" || matchKind == "none" {
		return
	}
	m.matches.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("match_kind", matchKind),
	)...))
}

// RecordSecondaryCredit counts an SRP credit.
func (m *Metrics) RecordSecondaryCredit(ctx context.Context, category string) {
	if m == nil {
		return
	}
	m.secondary.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("reward_category", strings.TrimSpace(category)),
	)...))
}

// RecordSpotReward counts a spot reward.
func (m *Metrics) RecordSpotReward(ctx context.Context) {
	if m == nil {
		return
	}
	m.spot.Add(ctx, 1)
}

// RecordPayout counts a payout computation. Gross is only observed for new rows.
func (m *Metrics) RecordPayout(ctx context.Context, outcome string, gross float64, created bool) {
	if m == nil {
		return
	}
	m.payouts.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)...))
	if created {
		m.payoutGross.Record(ctx, gross)
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":         {},
	"match_kind":      {},
	"reward_category": {},
	"endpoint":        {},
	"status_code":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
// Member identifiers never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
