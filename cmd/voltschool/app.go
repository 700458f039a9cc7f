package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"voltschool/internal/config"
	"voltschool/internal/core"
	"voltschool/internal/remote"
	"voltschool/pkg/domain"
)

// app is the composition root shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	adapter  *remote.Adapter
	queued   *core.QueuedPersister
	registry *prometheus.Registry
	trace    *os.File
	svc      *core.Service
}

// expvarName is the expvar map holding per-operation counters.
const expvarName = "voltschool_operations"

func loadConfig(opts *rootOptions, stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath, nil)
	if err != nil {
		return config.Config{}, nil, usageError{err}
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openApp(ctx context.Context, opts *rootOptions, stderr io.Writer) (*app, error) {
	cfg, logger, err := loadConfig(opts, stderr)
	if err != nil {
		return nil, err
	}
	adapter, err := remote.Open(ctx, cfg.RemoteConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("open remote: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, adapter: adapter, registry: prometheus.NewRegistry()}

	var persister core.Persister = core.NewWriteThrough(adapter)
	if cfg.WriteMode == config.WriteBehind {
		a.queued = core.NewQueuedPersister(adapter, logger)
		persister = a.queued
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	counters, err := core.NewExpvarMetricsRecorder(expvarName)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	svcOpts := []core.ServiceOption{
		core.WithMetricsRecorder(core.MultiMetricsRecorder{metrics, counters}),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	}
	if path := cfg.Log.TraceFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- operator supplied trace path
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.trace = f
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(f)))
	}
	a.svc = core.NewServiceFromDeps(
		core.StoreDeps{Adapter: adapter, Persister: persister, Logger: logger},
		svcOpts...,
	)
	logger.Debug("remote opened", "driver", adapter.Driver(), "write_mode", cfg.WriteMode)
	return a, nil
}

// Close flushes pending writes and releases the remote.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.queued != nil {
		if err := a.queued.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.adapter.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.trace != nil {
		if err := a.trace.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseCollection(name string) (domain.CollectionName, error) {
	c := domain.CollectionName(name)
	if !c.Valid() {
		return "", usagef("unknown collection %q (want one of %v)", name, domain.Collections())
	}
	return c, nil
}

func closeApp(ctx context.Context, a *app, err *error) {
	if cerr := a.Close(ctx); cerr != nil && *err == nil {
		*err = cerr
	}
}
