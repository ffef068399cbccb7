// Package pipeline advances tasks through their workflow and reverses that
// progress when work is vetoed.
//
// A run is an ordered list of Steps threaded with an immutable Context. Each
// step persists its change immediately and captures its own pre-image; when a
// later step fails, the steps that already ran are rolled back in reverse
// order. A rollback that cannot complete raises a critical management alert.
//
// The Engine exposes the completion and veto pipelines, their read-only
// permission checks, and validator-guarded manual status changes. Runs on the
// same task are serialized by a per-task lock held from before the first step
// until rollback and alerting finish; task writes additionally carry an
// optimistic version.
package pipeline
