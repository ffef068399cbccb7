// Package preflight provides readiness checks for the filesystem paths,
// database and external services labelflow depends on.
//
// The CLI "labelflow doctor" command runs RunAll and exits non-zero when any
// check fails. Checks for optional integrations (ntfy escalation, object
// store relocation) are gated by their config toggles.
package preflight
