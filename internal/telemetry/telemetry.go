// ABOUTME: OpenTelemetry trace and metric providers for the kbchat clients
// ABOUTME: Exports spans and metrics as JSON to rotating files when enabled

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/2389/kbchat/internal/config"
)

// DefaultServiceName is used when telemetry.service_name is empty.
const DefaultServiceName = "kbchat"

// metricInterval is how often the periodic reader exports metrics.
const metricInterval = 10 * time.Second

// ShutdownFunc flushes and releases the providers.
type ShutdownFunc func(ctx context.Context) error

// Setup installs global trace and meter providers exporting to traces.log and
// metrics.log under dir. When telemetry is disabled the global no-op providers
// are left in place and the returned shutdown does nothing.
func Setup(ctx context.Context, cfg config.TelemetryConfig, dir string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}

	traceFile := rotatingFile(filepath.Join(dir, "traces.log"))
	metricsFile := rotatingFile(filepath.Join(dir, "metrics.log"))

	tp, mp, err := newProviders(ctx, cfg.ServiceName, traceFile, metricsFile)
	if err != nil {
		traceFile.Close()
		metricsFile.Close()
		return nil, err
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer provider: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter provider: %w", err))
		}
		errs = append(errs, traceFile.Close(), metricsFile.Close())
		return errors.Join(errs...)
	}

	slog.Debug("telemetry enabled", "dir", dir, "service", serviceName(cfg.ServiceName))
	return shutdown, nil
}

// newProviders builds the SDK providers writing to the given sinks.
func newProviders(ctx context.Context, name string, traces, metrics io.Writer) (*sdktrace.TracerProvider, *sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName(name)),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traces))
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metrics))
	if err != nil {
		return nil, nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(metricInterval)),
		),
		sdkmetric.WithResource(res),
	)
	return tp, mp, nil
}

func rotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

func serviceName(name string) string {
	if name == "" {
		return DefaultServiceName
	}
	return name
}
