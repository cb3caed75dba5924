package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"go-tenant-rbac-service/internal/config"
)

// InitMetrics wires the OTLP metric exporter when metrics are enabled,
// otherwise a provider with no readers.
func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		logger.Debug("metrics disabled, using no-op meter provider")
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	logger.Info("metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

var (
	countersOnce          sync.Once
	repoOpCounter         metric.Int64Counter
	resolutionCounter     metric.Int64Counter
	accessDecisionCounter metric.Int64Counter
	authEventCounter      metric.Int64Counter
	auditEventCounter     metric.Int64Counter
)

func initCounters() {
	countersOnce.Do(func() {
		meter := otel.Meter("go-tenant-rbac-service")
		repoOpCounter, _ = meter.Int64Counter("repository_operations_total",
			metric.WithDescription("Repository operations by entity, operation and outcome"))
		resolutionCounter, _ = meter.Int64Counter("permission_resolutions_total",
			metric.WithDescription("Permission resolutions by context and outcome"))
		accessDecisionCounter, _ = meter.Int64Counter("access_decisions_total",
			metric.WithDescription("Authorization decisions by outcome"))
		authEventCounter, _ = meter.Int64Counter("auth_events_total",
			metric.WithDescription("Authentication events by type and outcome"))
		auditEventCounter, _ = meter.Int64Counter("audit_events_total",
			metric.WithDescription("Administrative audit events by name and outcome"))
	})
}

// RecordRepositoryOperation counts a repository call outcome. Outcomes are
// success, not_found and error.
func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	initCounters()
	repoOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

// RecordPermissionResolution counts a resolution; scope is "tenant" or
// "aggregate" depending on whether a tenant id was supplied.
func RecordPermissionResolution(ctx context.Context, scope, outcome string) {
	initCounters()
	resolutionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

func RecordAccessDecision(ctx context.Context, outcome string) {
	initCounters()
	accessDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func RecordAuthEvent(ctx context.Context, event, outcome string) {
	initCounters()
	authEventCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}
