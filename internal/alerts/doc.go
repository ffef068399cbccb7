// Package alerts records management alerts and escalates the critical ones.
//
// Alerts are persisted first so an escalation failure never loses the record.
// Critical alerts are then published through the notifications service and
// stamped as notified.
package alerts
