// Package stagegraph answers graph queries over a workflow's stages: the next
// stage after a given one, the first annotation stage, the predecessors of the
// completion stage and edge existence.
//
// The graph is read through a Source. store.Store is the production source;
// CachedSource layers an expiring LRU over it because the graph is read-only
// for the duration of a pipeline run and is consulted on every completion.
package stagegraph
