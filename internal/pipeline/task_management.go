package pipeline

import (
	"context"
	"fmt"

	"labelflow/internal/services"
	"labelflow/internal/store"
	"labelflow/internal/transition"
)

// TaskMode selects how TaskManagementStep treats the downstream task.
type TaskMode int

const (
	// TaskCreateOrUpdate readies the asset's task at the target stage.
	TaskCreateOrUpdate TaskMode = iota
	// TaskChangesRequired flags the asset's first annotation task for rework.
	TaskChangesRequired
)

func (m TaskMode) String() string {
	switch m {
	case TaskCreateOrUpdate:
		return "create_or_update"
	case TaskChangesRequired:
		return "changes_required"
	default:
		return fmt.Sprintf("TaskMode(%d)", int(m))
	}
}

// TaskManagementStep creates or updates the task that follows the context
// task for the same asset.
type TaskManagementStep struct {
	tasks  TaskStore
	stages StageResolver
	mode   TaskMode

	created *store.Task
	before  *store.Task
	after   *store.Task
}

// NewTaskManagementStep returns a task management step for mode.
func NewTaskManagementStep(tasks TaskStore, stages StageResolver, mode TaskMode) *TaskManagementStep {
	return &TaskManagementStep{tasks: tasks, stages: stages, mode: mode}
}

func (s *TaskManagementStep) Name() string { return StepTaskManagement }

func (s *TaskManagementStep) Execute(ctx context.Context, pc Context) (Context, error) {
	asset := pc.Asset()
	if asset == nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepTaskManagement, "no asset in pipeline context", nil)
	}
	switch s.mode {
	case TaskCreateOrUpdate:
		target := pc.TargetStage()
		if target == nil {
			return pc, services.Wrap(services.ErrConfiguration, component, StepTaskManagement, "no target stage for downstream task", nil)
		}
		return s.upsert(ctx, pc, asset.ID, target, ReadyStatusFor(target.StageType), store.StatusNotStarted)
	case TaskChangesRequired:
		task := pc.Task()
		if task == nil {
			return pc, services.Wrap(services.ErrStepFailed, component, StepTaskManagement, "no task in pipeline context", nil)
		}
		first, err := s.stages.FirstAnnotationStage(ctx, task.WorkflowID)
		if err != nil {
			return pc, err
		}
		return s.upsert(ctx, pc, asset.ID, first, store.StatusChangesRequired, store.StatusChangesRequired)
	default:
		return pc, services.Wrap(services.ErrConfiguration, component, StepTaskManagement,
			fmt.Sprintf("unknown task mode %s", s.mode), nil)
	}
}

func (s *TaskManagementStep) upsert(ctx context.Context, pc Context, assetID int64, stage *store.WorkflowStage, updateStatus, createStatus store.TaskStatus) (Context, error) {
	existing, err := s.tasks.FindTaskByAssetAndStage(ctx, assetID, stage.ID)
	if err != nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepTaskManagement,
			fmt.Sprintf("find task for asset %d at stage %q", assetID, stage.Name), err)
	}

	if existing == nil {
		priority := 0
		if task := pc.Task(); task != nil {
			priority = task.Priority
		}
		created, err := s.tasks.CreateTask(ctx, store.NewTask{
			AssetID:         assetID,
			WorkflowID:      stage.WorkflowID,
			WorkflowStageID: stage.ID,
			Status:          createStatus,
			Priority:        priority,
		})
		if err != nil {
			return pc, services.Wrap(services.ErrStepFailed, component, StepTaskManagement,
				fmt.Sprintf("create task for asset %d at stage %q", assetID, stage.Name), err)
		}
		s.created = created
		return pc.WithSecondaryTask(created), nil
	}

	// The downstream task was not worked on by the caller, so last_worked_on
	// is left alone.
	updated, err := s.tasks.UpdateTaskStatus(ctx, existing, updateStatus, "")
	if err != nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepTaskManagement,
			fmt.Sprintf("set task %d to %s", existing.ID, updateStatus), err)
	}
	if updated == nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepTaskManagement,
			fmt.Sprintf("task %d disappeared during update", existing.ID), nil)
	}
	s.before = existing
	s.after = updated
	return pc.WithSecondaryTask(updated), nil
}

func (s *TaskManagementStep) Rollback(ctx context.Context, _ Context) error {
	switch {
	case s.created != nil:
		if err := s.tasks.DeleteTask(ctx, s.created.ID); err != nil {
			return fmt.Errorf("delete created task %d: %w", s.created.ID, err)
		}
	case s.before != nil && s.after != nil:
		restore := s.before.Clone()
		restore.Version = s.after.Version
		if err := s.tasks.SaveTask(ctx, restore); err != nil {
			return fmt.Errorf("restore task %d to %s: %w", restore.ID, restore.Status, err)
		}
	}
	return nil
}

// ReadyStatusFor is the status an existing downstream task takes when work
// arrives at a stage of the given type. Newly created downstream tasks start
// NOT_STARTED and may move to this status or straight to IN_PROGRESS.
func ReadyStatusFor(stageType store.StageType) store.TaskStatus {
	return transition.ReadyStatus(stageType)
}

// ValidateDataIntegrity reports false when more than one of the asset's
// tasks is IN_PROGRESS.
func ValidateDataIntegrity(ctx context.Context, tasks TaskStore, assetID int64) (bool, error) {
	list, err := tasks.ListTasksByAsset(ctx, assetID)
	if err != nil {
		return false, fmt.Errorf("list tasks for asset %d: %w", assetID, err)
	}
	active := 0
	for _, task := range list {
		if task.Status == store.StatusInProgress {
			active++
		}
	}
	return active <= 1, nil
}
