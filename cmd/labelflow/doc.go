// Package main hosts the labelflow CLI.
//
// The Cobra command tree drives the task pipeline engine directly against the
// configured SQLite database: completing and vetoing tasks, manual status
// transitions, stage graph inspection, alert triage, environment checks and
// configuration scaffolding. Commands resolve configuration once per
// invocation and open the store only for the duration of a single command.
package main
