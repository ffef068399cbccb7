package stagegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
)

const component = "stagegraph"

var (
	// ErrNoAnnotationStage reports a workflow without any ANNOTATION stage.
	ErrNoAnnotationStage = errors.New("workflow has no annotation stage")
	// ErrAmbiguousBranch reports a stage whose outgoing edges cannot be
	// narrowed to one without a condition.
	ErrAmbiguousBranch = errors.New("ambiguous stage branch")
)

// Source exposes the stage graph.
type Source interface {
	GetStage(ctx context.Context, id int64) (*store.WorkflowStage, error)
	ListStages(ctx context.Context, workflowID int64) ([]*store.WorkflowStage, error)
	OutgoingConnections(ctx context.Context, stageID int64) ([]*store.StageConnection, error)
	IncomingConnections(ctx context.Context, stageID int64) ([]*store.StageConnection, error)
}

// Resolver answers stage graph queries.
type Resolver struct {
	source Source
	logger *slog.Logger
}

// NewResolver constructs a Resolver over source.
func NewResolver(source Source, logger *slog.Logger) *Resolver {
	return &Resolver{source: source, logger: logging.NewComponentLogger(logger, component)}
}

// Stage fetches a stage by id. A missing stage yields (nil, nil).
func (r *Resolver) Stage(ctx context.Context, id int64) (*store.WorkflowStage, error) {
	return r.source.GetStage(ctx, id)
}

// Stages returns the workflow's stages ordered by stage order.
func (r *Resolver) Stages(ctx context.Context, workflowID int64) ([]*store.WorkflowStage, error) {
	return r.source.ListStages(ctx, workflowID)
}

// NextStage returns the stage that follows currentStageID, or nil when the
// stage is terminal. An unconditional edge wins; a single labelled edge is
// followed as-is; several labelled edges without an unconditional one fail
// with ErrAmbiguousBranch.
func (r *Resolver) NextStage(ctx context.Context, currentStageID int64) (*store.WorkflowStage, error) {
	return r.NextStageFor(ctx, currentStageID, "")
}

// NextStageFor selects the outgoing edge whose condition matches condition
// (case-insensitive). An empty condition applies the NextStage policy.
func (r *Resolver) NextStageFor(ctx context.Context, currentStageID int64, condition string) (*store.WorkflowStage, error) {
	conns, err := r.source.OutgoingConnections(ctx, currentStageID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "next stage", "load outgoing connections", err)
	}
	edge, err := selectEdge(conns, condition)
	if err != nil {
		r.logger.Warn("stage branch cannot be resolved",
			logging.Int64("stage_id", currentStageID),
			logging.String("condition", condition),
			logging.Int("edges", len(conns)),
			logging.EventType("stage_branch_ambiguous"),
			logging.Hint("label one edge as unconditional or pass an explicit condition"),
		)
		return nil, services.Wrap(services.ErrConfiguration, component, "next stage",
			fmt.Sprintf("stage %d has no single next stage", currentStageID), err)
	}
	if edge == nil {
		return nil, nil
	}

	next, err := r.source.GetStage(ctx, edge.ToStageID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "next stage", "load target stage", err)
	}
	if next == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "next stage",
			fmt.Sprintf("connection %d points at missing stage %d", edge.ID, edge.ToStageID), nil)
	}
	return next, nil
}

func selectEdge(conns []*store.StageConnection, condition string) (*store.StageConnection, error) {
	if len(conns) == 0 {
		return nil, nil
	}
	if want := strings.TrimSpace(condition); want != "" {
		for _, conn := range conns {
			if strings.EqualFold(strings.TrimSpace(conn.Condition), want) {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("%w: no edge labelled %q", ErrAmbiguousBranch, want)
	}
	for _, conn := range conns {
		if conn.Unconditional() {
			return conn, nil
		}
	}
	if len(conns) == 1 {
		return conns[0], nil
	}
	return nil, fmt.Errorf("%w: %d labelled edges and no unconditional edge", ErrAmbiguousBranch, len(conns))
}

// FirstAnnotationStage returns the ANNOTATION stage with the lowest stage
// order. A workflow without one fails with ErrNoAnnotationStage.
func (r *Resolver) FirstAnnotationStage(ctx context.Context, workflowID int64) (*store.WorkflowStage, error) {
	stages, err := r.source.ListStages(ctx, workflowID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "first annotation stage", "load stages", err)
	}
	var first *store.WorkflowStage
	for _, stage := range stages {
		if stage.StageType != store.StageAnnotation {
			continue
		}
		if first == nil || stage.StageOrder < first.StageOrder {
			first = stage
		}
	}
	if first == nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "first annotation stage",
			fmt.Sprintf("workflow %d has no annotation stage", workflowID), ErrNoAnnotationStage)
	}
	return first, nil
}

// CompletionPredecessors returns the stages with an edge into the workflow's
// COMPLETION stage. It returns an empty slice when there is no completion
// stage or nothing leads into it.
func (r *Resolver) CompletionPredecessors(ctx context.Context, workflowID int64) ([]*store.WorkflowStage, error) {
	stages, err := r.source.ListStages(ctx, workflowID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "completion predecessors", "load stages", err)
	}
	var completion *store.WorkflowStage
	byID := make(map[int64]*store.WorkflowStage, len(stages))
	for _, stage := range stages {
		byID[stage.ID] = stage
		if completion == nil && stage.StageType == store.StageCompletion {
			completion = stage
		}
	}
	predecessors := []*store.WorkflowStage{}
	if completion == nil {
		return predecessors, nil
	}

	conns, err := r.source.IncomingConnections(ctx, completion.ID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "completion predecessors", "load incoming connections", err)
	}
	seen := make(map[int64]struct{}, len(conns))
	for _, conn := range conns {
		if _, dup := seen[conn.FromStageID]; dup {
			continue
		}
		seen[conn.FromStageID] = struct{}{}
		if stage, ok := byID[conn.FromStageID]; ok {
			predecessors = append(predecessors, stage)
		}
	}
	return predecessors, nil
}

// ConnectionExists reports whether an edge leads from fromID to toID.
func (r *Resolver) ConnectionExists(ctx context.Context, fromID, toID int64) (bool, error) {
	conns, err := r.source.OutgoingConnections(ctx, fromID)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, component, "connection exists", "load outgoing connections", err)
	}
	for _, conn := range conns {
		if conn.ToStageID == toID {
			return true, nil
		}
	}
	return false, nil
}
