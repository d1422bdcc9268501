package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"dga-engine/internal/cfg"
	"dga-engine/internal/metrics"
	"dga-engine/internal/ml"
	"dga-engine/internal/normative"
	"dga-engine/internal/storage"
)

// app holds the components shared by the commands.
type app struct {
	settings cfg.Settings
	store    *storage.Store
	rules    normative.Service
	registry *prometheus.Registry
	metrics  *metrics.MetricsWrapper
	service  *ml.Service
}

func openApp(settings cfg.Settings) (*app, error) {
	store, err := storage.New(settings.DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample store: %w", err)
	}

	rules, err := normative.New(settings.NormativeMode, settings.NormativeURL, settings.NormativeTimeout)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mw := metrics.NewWrapper(metrics.NewWithRegistry(registry))

	svc, err := ml.NewService(store, rules, settings.ServiceConfig(), mw)
	if err != nil {
		store.Close()
		return nil, err
	}

	log.Debug().
		Str("data_path", settings.DataPath).
		Str("model_dir", settings.ModelDir).
		Str("normative_mode", settings.NormativeMode).
		Msg("Engine initialised")

	return &app{
		settings: settings,
		store:    store,
		rules:    rules,
		registry: registry,
		metrics:  mw,
		service:  svc,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close sample store")
	}
}
