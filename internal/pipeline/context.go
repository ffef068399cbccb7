package pipeline

import (
	"strings"

	"labelflow/internal/store"
)

// Context is the immutable value carried through a pipeline run. The With
// methods return modified copies; getters return copies of mutable records.
type Context struct {
	task         *store.Task
	asset        *store.Asset
	currentStage *store.WorkflowStage
	targetStage  *store.WorkflowStage
	secondary    *store.Task
	userID       string
	reason       string
}

// NewContext builds the starting context of a run.
func NewContext(task *store.Task, asset *store.Asset, stage *store.WorkflowStage, userID string) Context {
	return Context{
		task:         task.Clone(),
		asset:        cloneAsset(asset),
		currentStage: stage.Clone(),
		userID:       strings.TrimSpace(userID),
	}
}

func (c Context) Task() *store.Task                  { return c.task.Clone() }
func (c Context) Asset() *store.Asset                { return cloneAsset(c.asset) }
func (c Context) CurrentStage() *store.WorkflowStage { return c.currentStage.Clone() }
func (c Context) TargetStage() *store.WorkflowStage  { return c.targetStage.Clone() }
func (c Context) SecondaryTask() *store.Task         { return c.secondary.Clone() }
func (c Context) UserID() string                     { return c.userID }
func (c Context) Reason() string                     { return c.reason }

func (c Context) WithTask(task *store.Task) Context {
	c.task = task.Clone()
	return c
}

func (c Context) WithAsset(asset *store.Asset) Context {
	c.asset = cloneAsset(asset)
	return c
}

func (c Context) WithTargetStage(stage *store.WorkflowStage) Context {
	c.targetStage = stage.Clone()
	return c
}

// WithSecondaryTask records the downstream task created or updated by a run.
func (c Context) WithSecondaryTask(task *store.Task) Context {
	c.secondary = task.Clone()
	return c
}

func (c Context) WithReason(reason string) Context {
	c.reason = strings.TrimSpace(reason)
	return c
}

func (c Context) taskID() int64 {
	if c.task == nil {
		return 0
	}
	return c.task.ID
}

func (c Context) assetID() int64 {
	if c.asset == nil {
		return 0
	}
	return c.asset.ID
}

func cloneAsset(asset *store.Asset) *store.Asset {
	if asset == nil {
		return nil
	}
	clone := *asset
	return &clone
}
