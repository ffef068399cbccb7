// Package services defines shared utilities consumed by the pipeline engine,
// the storage layer, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, pipeline names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap and Details helpers that
//     translate failures into the categories reported in pipeline results
//     (not found, precondition, configuration, step failure, rollback
//     failure).
//
// Use these helpers when wiring new steps or collaborators so operational
// behaviour (error classification, observability) stays uniform.
package services
