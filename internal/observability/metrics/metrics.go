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

// Metrics exposes application-level instruments.
type Metrics struct {
	quotaChecks   metric.Int64Counter
	quotaDenials  metric.Int64Counter
	usageRecords  metric.Int64Counter
	cacheLookups  metric.Int64Counter
	cacheSweeps   metric.Int64Counter
	sweepsRemoved metric.Int64Counter
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
		name = "adscope"
	}
	meter := provider.Meter(name)

	quotaChecks, err := meter.Int64Counter("adscope_quota_checks_total")
	if err != nil {
		return nil, err
	}
	quotaDenials, err := meter.Int64Counter("adscope_quota_denials_total")
	if err != nil {
		return nil, err
	}
	usageRecords, err := meter.Int64Counter("adscope_usage_records_total")
	if err != nil {
		return nil, err
	}
	cacheLookups, err := meter.Int64Counter("adscope_report_cache_lookups_total")
	if err != nil {
		return nil, err
	}
	cacheSweeps, err := meter.Int64Counter("adscope_report_cache_sweeps_total")
	if err != nil {
		return nil, err
	}
	sweepsRemoved, err := meter.Int64Counter("adscope_report_cache_swept_rows_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		quotaChecks:   quotaChecks,
		quotaDenials:  quotaDenials,
		usageRecords:  usageRecords,
		cacheLookups:  cacheLookups,
		cacheSweeps:   cacheSweeps,
		sweepsRemoved: sweepsRemoved,
	}, nil
}

// RecordQuotaCheck counts limit checks, split by outcome.
func (m *Metrics) RecordQuotaCheck(ctx context.Context, canGenerate bool) {
	if m == nil {
		return
	}
	m.quotaChecks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("can_generate", canGenerate)))
	if !canGenerate {
		m.quotaDenials.Add(ctx, 1)
	}
}

// RecordUsage counts persisted usage rows by report type.
func (m *Metrics) RecordUsage(ctx context.Context, reportType string) {
	if m == nil {
		return
	}
	m.usageRecords.Add(ctx, 1, metric.WithAttributes(attribute.String("report_type", strings.TrimSpace(reportType))))
}

// RecordCacheLookup counts cache reads, split by hit/miss.
func (m *Metrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))
}

// RecordCacheSweep counts sweep runs and the rows they removed.
func (m *Metrics) RecordCacheSweep(ctx context.Context, removed int64) {
	if m == nil {
		return
	}
	m.cacheSweeps.Add(ctx, 1)
	if removed > 0 {
		m.sweepsRemoved.Add(ctx, removed)
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}
