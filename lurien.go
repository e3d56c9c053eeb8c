// Package lurien wires the scope-sampling profiler to its sinks from a
// single configuration.
//
//	probe, err := lurien.NewProbe(ctx, cfg, os.Stdout)
//	...
//	defer probe.Shutdown(ctx)
//
//	th := probe.Profiler().NewThread("worker")
//	defer th.Close()
//	defer th.Enter("work").Exit()
package lurien

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/exporter"
	"github.com/AlexKent3141/lurien/hotspot"
	"github.com/AlexKent3141/lurien/internal/application/collector"
	"github.com/AlexKent3141/lurien/internal/logging"
	"github.com/AlexKent3141/lurien/internal/ports/http_reporter"
	"github.com/AlexKent3141/lurien/pkg/config"
	"github.com/AlexKent3141/lurien/profiling"
	"github.com/AlexKent3141/lurien/storage/inmemory"
	"github.com/AlexKent3141/lurien/storage/sqlite"
)

// Version is reported as the service version on exported traces.
const Version = "0.3.0"

// Probe owns a running profiler and every sink it feeds.
type Probe struct {
	profiler  *profiling.Profiler
	store     *inmemory.Store
	db        *sqlite.Sink
	tp        *sdktrace.TracerProvider
	stopStats func()
	logger    zerolog.Logger
}

// NewProbe builds the sinks selected by cfg, installs them and starts the
// sampler. Text output goes to out. When cfg.Enabled is false the probe
// holds a nil profiler, on which every profiling call is a no-op.
func NewProbe(ctx context.Context, cfg config.Config, out io.Writer) (*Probe, error) {
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	return newProbe(ctx, cfg, out, logger)
}

func newProbe(ctx context.Context, cfg config.Config, out io.Writer, logger zerolog.Logger) (*Probe, error) {
	p := &Probe{
		store:  inmemory.NewStore(cfg.BufferSize),
		logger: logger,
	}
	if !cfg.Enabled {
		logger.Info().Msg("Profiler disabled")
		return p, nil
	}

	sinks := exporter.Fanout{p.store}

	if cfg.Output == "text" && out != nil {
		sinks = append(sinks, exporter.NewTextSink(out))
	}

	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		p.db = db
		sinks = append(sinks, db)
	}

	if cfg.PprofDir != "" {
		pprofSink, err := exporter.NewPprofSink(cfg.PprofDir, logger)
		if err != nil {
			p.closeSinks(ctx)
			return nil, err
		}
		sinks = append(sinks, pprofSink)
	}

	if cfg.OTelEnabled {
		res, err := newResource(cfg.ServiceName, Version)
		if err != nil {
			p.closeSinks(ctx)
			return nil, fmt.Errorf("failed to create otel resource: %w", err)
		}
		p.tp = sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(p.tp)
		sinks = append(sinks, exporter.NewOTelSink(p.tp))
	}

	var sink domain.Sink = sinks
	sink = hotspot.NewDetector(hotspot.Config{
		Enabled:    cfg.HotspotThreshold > 0,
		Threshold:  cfg.HotspotThreshold,
		MinSamples: cfg.HotspotMinSamples,
	}, p.store, sink, logger)

	p.profiler = profiling.NewProfiler(profiling.Config{SampleInterval: cfg.SampleInterval}, logger)
	p.profiler.Init(sink)

	if cfg.StatsInterval > 0 {
		p.stopStats = collector.Start(p.profiler, p.store, cfg.StatsInterval, logger)
	}

	logger.Info().Str("service", cfg.ServiceName).Int("sinks", len(sinks)).Msg("Probe initialized")
	return p, nil
}

// Profiler returns the probe's profiler, nil when profiling is disabled.
func (p *Probe) Profiler() *profiling.Profiler {
	return p.profiler
}

// Store returns the in-memory store of recent results.
func (p *Probe) Store() *inmemory.Store {
	return p.store
}

// SQLite returns the SQLite sink, or nil when none is configured.
func (p *Probe) SQLite() *sqlite.Sink {
	return p.db
}

// Handler serves the store as JSON.
func (p *Probe) Handler() http.Handler {
	return http_reporter.NewHandler(p.store)
}

// TracerProvider returns the tracer provider spans are exported through, or
// nil when the OpenTelemetry sink is off. Callers register their exporters
// on it.
func (p *Probe) TracerProvider() *sdktrace.TracerProvider {
	return p.tp
}

// Shutdown stops the sampler and releases the sinks. Threads still open
// after Shutdown keep delivering to the in-memory and text sinks; writes to
// closed sinks are logged and dropped.
func (p *Probe) Shutdown(ctx context.Context) error {
	p.profiler.Stop()
	if p.stopStats != nil {
		p.stopStats()
	}
	return p.closeSinks(ctx)
}

func (p *Probe) closeSinks(ctx context.Context) error {
	var errs []error
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sqlite sink: %w", err))
		}
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracer provider: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.logger.Error().Err(err).Msg("Error shutting down probe")
		return err
	}
	return nil
}

func newResource(serviceName, serviceVersion string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
}
