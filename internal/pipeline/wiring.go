package pipeline

import (
	"fmt"
	"log/slog"

	"labelflow/internal/alerts"
	"labelflow/internal/config"
	"labelflow/internal/notifications"
	"labelflow/internal/objectstore"
	"labelflow/internal/stagegraph"
	"labelflow/internal/store"
)

// NewFromConfig assembles an Engine over st using cfg: cached stage graph
// lookups, ntfy escalation, per-task lock files and, when enabled, blob
// relocation through the object store.
func NewFromConfig(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Engine, error) {
	if cfg == nil || st == nil {
		return nil, fmt.Errorf("pipeline: config and store are required")
	}

	source := stagegraph.NewCachedSource(st, cfg.StageGraph.CacheSize, cfg.StageGraphTTL())
	resolver := stagegraph.NewResolver(source, logger)

	var sinkOpts []alerts.Option
	if !cfg.Alerts.NotifyCritical {
		sinkOpts = append(sinkOpts, alerts.WithoutNotifications())
	}
	sink := alerts.NewSink(st, notifications.NewService(cfg), logger, sinkOpts...)

	var assets AssetStore = st
	if cfg.ObjectStore.Enabled {
		client, err := objectstore.New(cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		assets = objectstore.NewRelocator(st, st, client, logger)
	}

	lockDir := ""
	if cfg.Pipeline.CrossProcessLocks {
		lockDir = cfg.LockDir()
	}

	return New(Dependencies{
		Tasks:           st,
		Assets:          assets,
		DataSources:     st,
		Stages:          resolver,
		Alerts:          sink,
		Locker:          NewTaskLocker(lockDir, cfg.LockTimeout(), cfg.LockRetryDelay()),
		Logger:          logger,
		RollbackTimeout: cfg.RollbackTimeout(),
	})
}
