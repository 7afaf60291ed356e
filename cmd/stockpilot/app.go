package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stockpilot/internal/config"
	"stockpilot/internal/connectivity"
	"stockpilot/internal/engine"
	"stockpilot/internal/logger"
	"stockpilot/internal/pos"
	"stockpilot/internal/remote"
	"stockpilot/internal/store"
)

// app wires the store, remote client, monitor, engine, and service from
// one loaded config. Commands build it, use what they need, and Close it.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *store.DB
	client  *remote.Client
	monitor *connectivity.Monitor
	engine  *engine.Engine
	service *pos.Service
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.Init(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.GetTimeout())

	monitor := connectivity.New(client.Ping, connectivity.Config{
		Interval:         cfg.Connectivity.GetInterval(),
		FailureThreshold: cfg.Connectivity.FailureThreshold,
		ProbeTimeout:     cfg.Connectivity.GetProbeTimeout(),
		Logger:           log,
	})

	eng := engine.New(db, client, monitor, engine.Config{
		UserID:     cfg.UserID,
		Interval:   cfg.Sync.GetInterval(),
		MaxRetries: cfg.Sync.MaxRetries,
		Logger:     log,
	})

	svc := pos.NewService(db, eng, cfg.UserID, log)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		client:  client,
		monitor: monitor,
		engine:  eng,
		service: svc,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}

// probeOnce sets the monitor state from a single synchronous probe.
// One-shot commands use it instead of starting the periodic loop.
func (a *app) probeOnce(ctx context.Context) bool {
	online := a.client.Ping(ctx) == nil
	a.monitor.SetOnline(online)
	return online
}
