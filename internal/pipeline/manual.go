package pipeline

import (
	"context"
	"errors"
	"fmt"

	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
	"labelflow/internal/transition"
)

// TransitionTask applies a manual status change checked against the
// transition rules. Completing a task out of an annotation or revision stage
// runs the completion pipeline instead of a bare status write.
//
// Only a manager may change a task assigned to someone else. Moving an
// unassigned task to IN_PROGRESS assigns it to userID.
func (e *Engine) TransitionTask(ctx context.Context, taskID int64, userID string, to store.TaskStatus, isManager bool) Result {
	ctx, logger := e.begin(ctx, PipelineTransition, taskID)
	unlock, state, err := e.lockAndLoad(ctx, taskID, nil)
	if err != nil {
		return e.fail(ctx, logger, PipelineTransition, taskOf(state), nil, err)
	}
	defer unlock()

	task, stage := state.task, state.stage
	ctx = services.WithStage(ctx, stage.Name)
	logger = logger.With(logging.Stage(stage.Name))

	if !isManager && task.AssignedToUserID != "" && !task.IsAssignedTo(userID) {
		return e.fail(ctx, logger, PipelineTransition, task, nil, services.Wrap(services.ErrPrecondition, component, "transition",
			fmt.Sprintf("task %d is assigned to another user", task.ID), nil))
	}
	decision := transition.IsAllowed(task.Status, to, stage.StageType, isManager)
	if !decision.Allowed {
		return e.fail(ctx, logger, PipelineTransition, task, nil, services.Wrap(services.ErrPrecondition, component, "transition",
			fmt.Sprintf("task %d: %s", task.ID, decision.Reason), nil))
	}

	if transition.ShouldMoveAsset(to, stage.StageType, stage.IsFinalStage) {
		return e.complete(ctx, logger, state, userID)
	}

	next := task.Clone()
	next.ApplyStatus(to, e.now().UTC())
	next.LastWorkedOnByUserID = userID
	if to == store.StatusInProgress && next.AssignedToUserID == "" {
		next.AssignedToUserID = userID
	}
	if err := e.tasks.SaveTask(ctx, next); err != nil {
		marker := services.ErrTransient
		if errors.Is(err, store.ErrNotFound) {
			marker = services.ErrNotFound
		}
		return e.fail(ctx, logger, PipelineTransition, task, nil, services.Wrap(marker, component, "transition",
			fmt.Sprintf("set task %d to %s", task.ID, to), err))
	}

	logger.Info("task status changed",
		logging.EventType("status_change"),
		logging.UserID(userID),
		logging.String("from", string(task.Status)),
		logging.String("to", string(to)),
		logging.Bool("manager", isManager),
	)
	return e.finish(ctx, logger, PipelineTransition, runOutcome{final: NewContext(next, state.asset, stage, userID)})
}
