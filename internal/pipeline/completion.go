package pipeline

import (
	"context"
	"log/slog"

	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
)

// CompleteTask marks an IN_PROGRESS task COMPLETED on behalf of its assignee
// and hands the asset to the next stage, creating or readying the task
// there. A stage without a successor only completes the task.
func (e *Engine) CompleteTask(ctx context.Context, taskID int64, userID string) Result {
	ctx, logger := e.begin(ctx, PipelineCompletion, taskID)
	unlock, state, err := e.lockAndLoad(ctx, taskID, func(task *store.Task, _ *store.WorkflowStage) error {
		return checkCanExecute(task, userID, PipelineCompletion)
	})
	if err != nil {
		return e.fail(ctx, logger, PipelineCompletion, taskOf(state), nil, err)
	}
	defer unlock()
	return e.complete(ctx, logger, state, userID)
}

// complete runs the completion pipeline; the task lock must be held.
func (e *Engine) complete(ctx context.Context, logger *slog.Logger, state *loaded, userID string) Result {
	ctx = services.WithStage(ctx, state.stage.Name)
	logger = logger.With(logging.Stage(state.stage.Name))

	if err := checkCanExecute(state.task, userID, PipelineCompletion); err != nil {
		return e.fail(ctx, logger, PipelineCompletion, state.task, nil, err)
	}

	pc := NewContext(state.task, state.asset, state.stage, userID)
	next, err := e.stages.NextStage(ctx, state.stage.ID)
	if err != nil {
		var alertIDs []string
		if services.KindOf(err) == services.KindConfiguration {
			if id := e.alertMisconfigured(ctx, logger, pc, err); id != "" {
				alertIDs = append(alertIDs, id)
			}
		}
		return e.fail(ctx, logger, PipelineCompletion, state.task, alertIDs, err)
	}

	steps := []Step{NewStatusUpdateStep(e.tasks, store.StatusCompleted)}
	nextName := ""
	if next != nil {
		pc = pc.WithTargetStage(next)
		nextName = next.Name
		steps = append(steps,
			NewAssetTransferStep(e.assets, e.sources, TransferForward),
			NewTaskManagementStep(e.tasks, e.stages, TaskCreateOrUpdate),
		)
	}

	e.checkIntegrity(ctx, logger, state.asset.ID)
	logger.Info("completion pipeline started",
		logging.EventType("pipeline_start"),
		logging.UserID(pc.UserID()),
		logging.AssetID(state.asset.ID),
		logging.String("next_stage", nextName),
		logging.Int("steps", len(steps)),
	)

	out, err := e.run(ctx, logger, PipelineCompletion, pc, steps)
	if err != nil {
		return e.fail(ctx, logger, PipelineCompletion, state.task, out.alertIDs, err)
	}
	return e.finish(ctx, logger, PipelineCompletion, out)
}

// CanCompleteTask reports whether userID may complete the task now.
func (e *Engine) CanCompleteTask(ctx context.Context, taskID int64, userID string) bool {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil || task == nil {
		return false
	}
	return checkCanExecute(task, userID, PipelineCompletion) == nil
}

func taskOf(state *loaded) *store.Task {
	if state == nil {
		return nil
	}
	return state.task
}
