package preflight

import (
	"context"

	"labelflow/internal/config"
	"labelflow/internal/store"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the free-space floor for the data directory.
const minFreeBytes = 256 << 20

// RunAll executes all applicable preflight checks for the given config.
// Optional integrations are only checked when enabled. st may be nil when
// the database could not be opened.
func RunAll(ctx context.Context, cfg *config.Config, st *store.Store) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckFreeSpace("Data directory space", cfg.Paths.DataDir, minFreeBytes))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Pipeline.CrossProcessLocks {
		results = append(results, CheckDirectoryAccess("Lock directory", cfg.LockDir()))
	}

	results = append(results, CheckDatabase(ctx, st))

	if cfg.Alerts.NotifyCritical && cfg.Alerts.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Alerts.NtfyTopic))
	}
	if cfg.ObjectStore.Enabled {
		results = append(results, CheckObjectStore(ctx, cfg.ObjectStore))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
