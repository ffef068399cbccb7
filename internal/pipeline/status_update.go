package pipeline

import (
	"context"
	"fmt"

	"labelflow/internal/services"
	"labelflow/internal/store"
)

// StatusUpdateStep moves the context task to a fixed status.
type StatusUpdateStep struct {
	tasks  TaskStore
	target store.TaskStatus

	before *store.Task
	after  *store.Task
}

// NewStatusUpdateStep returns a step that sets the task status to target.
func NewStatusUpdateStep(tasks TaskStore, target store.TaskStatus) *StatusUpdateStep {
	return &StatusUpdateStep{tasks: tasks, target: target}
}

func (s *StatusUpdateStep) Name() string { return StepStatusUpdate }

func (s *StatusUpdateStep) Execute(ctx context.Context, pc Context) (Context, error) {
	task := pc.Task()
	if task == nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepStatusUpdate, "no task in pipeline context", nil)
	}
	updated, err := s.tasks.UpdateTaskStatus(ctx, task, s.target, pc.UserID())
	if err != nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepStatusUpdate,
			fmt.Sprintf("set task %d to %s", task.ID, s.target), err)
	}
	if updated == nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepStatusUpdate,
			fmt.Sprintf("task %d disappeared during status update", task.ID), nil)
	}
	s.before = task
	s.after = updated
	return pc.WithTask(updated), nil
}

// Rollback writes the captured pre-image back over the version this step
// produced. A concurrent writer since then surfaces as a version conflict.
func (s *StatusUpdateStep) Rollback(ctx context.Context, _ Context) error {
	if s.before == nil || s.after == nil {
		return nil
	}
	restore := s.before.Clone()
	restore.Version = s.after.Version
	if err := s.tasks.SaveTask(ctx, restore); err != nil {
		return fmt.Errorf("restore task %d to %s: %w", restore.ID, restore.Status, err)
	}
	return nil
}
