// Package config loads, normalizes, and validates labelflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LABELFLOW_NTFY_TOPIC. The Config type centralizes every knob the engine
// and CLI need so the database location, lock behaviour, and alert
// transport are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
