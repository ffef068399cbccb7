// Package notifications delivers management alerts via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// the [alerts] section and degrades to a no-op when no topic is set. Events
// without a message format are dropped silently.
package notifications
