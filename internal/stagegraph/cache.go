package stagegraph

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"labelflow/internal/store"
)

// CachedSource memoizes graph reads from an underlying Source. Entries expire
// after ttl so edits to the graph become visible without a restart. Missing
// stages are not cached. Stages are copied in and out so callers never share
// a cached record.
type CachedSource struct {
	source   Source
	stages   *expirable.LRU[int64, *store.WorkflowStage]
	lists    *expirable.LRU[int64, []*store.WorkflowStage]
	outgoing *expirable.LRU[int64, []*store.StageConnection]
	incoming *expirable.LRU[int64, []*store.StageConnection]
}

// NewCachedSource wraps source with LRU caches holding up to size entries
// each. A size <= 0 disables caching and returns source unchanged.
func NewCachedSource(source Source, size int, ttl time.Duration) Source {
	if size <= 0 {
		return source
	}
	return &CachedSource{
		source:   source,
		stages:   expirable.NewLRU[int64, *store.WorkflowStage](size, nil, ttl),
		lists:    expirable.NewLRU[int64, []*store.WorkflowStage](size, nil, ttl),
		outgoing: expirable.NewLRU[int64, []*store.StageConnection](size, nil, ttl),
		incoming: expirable.NewLRU[int64, []*store.StageConnection](size, nil, ttl),
	}
}

func (c *CachedSource) GetStage(ctx context.Context, id int64) (*store.WorkflowStage, error) {
	if stage, ok := c.stages.Get(id); ok {
		return stage.Clone(), nil
	}
	stage, err := c.source.GetStage(ctx, id)
	if err != nil || stage == nil {
		return stage, err
	}
	c.stages.Add(id, stage.Clone())
	return stage, nil
}

func (c *CachedSource) ListStages(ctx context.Context, workflowID int64) ([]*store.WorkflowStage, error) {
	if stages, ok := c.lists.Get(workflowID); ok {
		return cloneStages(stages), nil
	}
	stages, err := c.source.ListStages(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	kept := cloneStages(stages)
	c.lists.Add(workflowID, kept)
	for _, stage := range kept {
		c.stages.Add(stage.ID, stage.Clone())
	}
	return stages, nil
}

func (c *CachedSource) OutgoingConnections(ctx context.Context, stageID int64) ([]*store.StageConnection, error) {
	return cachedConnections(ctx, c.outgoing, stageID, c.source.OutgoingConnections)
}

func (c *CachedSource) IncomingConnections(ctx context.Context, stageID int64) ([]*store.StageConnection, error) {
	return cachedConnections(ctx, c.incoming, stageID, c.source.IncomingConnections)
}

// Purge drops every cached entry.
func (c *CachedSource) Purge() {
	c.stages.Purge()
	c.lists.Purge()
	c.outgoing.Purge()
	c.incoming.Purge()
}

func cloneStages(stages []*store.WorkflowStage) []*store.WorkflowStage {
	if stages == nil {
		return nil
	}
	out := make([]*store.WorkflowStage, len(stages))
	for i, stage := range stages {
		out[i] = stage.Clone()
	}
	return out
}

func cachedConnections(
	ctx context.Context,
	cache *expirable.LRU[int64, []*store.StageConnection],
	stageID int64,
	load func(context.Context, int64) ([]*store.StageConnection, error),
) ([]*store.StageConnection, error) {
	if conns, ok := cache.Get(stageID); ok {
		return conns, nil
	}
	conns, err := load(ctx, stageID)
	if err != nil {
		return nil, err
	}
	cache.Add(stageID, conns)
	return conns, nil
}
