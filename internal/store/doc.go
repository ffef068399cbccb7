// Package store persists the task-workflow domain in SQLite: tasks, assets,
// data sources, workflows with their stage graph, and management alerts.
//
// The Store satisfies every storage collaborator the pipeline engine consumes.
// Getters return (nil, nil) when a row is missing so callers decide whether
// absence is an error. Task writes are guarded by an optimistic version column;
// a write issued against a stale version fails with ErrVersionConflict.
//
// Schema changes bump schemaVersion in schema.go; existing databases must be
// recreated to adopt the new schema.
package store
