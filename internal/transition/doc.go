// Package transition decides which task status changes are legal and whether
// completing a task should move its asset to the next stage's data source.
//
// Every function here is pure. The transition rules live in a table keyed by the
// current status so the whole matrix can be inspected and tested as data.
package transition
