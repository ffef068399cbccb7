package pipeline

import (
	"context"
	"errors"
	"fmt"

	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
)

var (
	// ErrAlreadyVetoed reports a veto of a task that is already VETOED.
	ErrAlreadyVetoed = errors.New("task already vetoed")
	// ErrAnnotationVeto reports a veto attempted at an annotation stage.
	ErrAnnotationVeto = errors.New("annotation tasks cannot be vetoed")
)

// VetoTask rejects a review or completion task: the task becomes VETOED, the
// asset returns to the project's annotation data source and the asset's task
// at the first annotation stage is flagged CHANGES_REQUIRED.
func (e *Engine) VetoTask(ctx context.Context, taskID int64, userID, reason string) Result {
	ctx, logger := e.begin(ctx, PipelineVeto, taskID)
	unlock, state, err := e.lockAndLoad(ctx, taskID, func(task *store.Task, stage *store.WorkflowStage) error {
		return checkCanVeto(task, stage, userID)
	})
	if err != nil {
		return e.fail(ctx, logger, PipelineVeto, taskOf(state), nil, err)
	}
	defer unlock()

	ctx = services.WithStage(ctx, state.stage.Name)
	logger = logger.With(logging.Stage(state.stage.Name))

	pc := NewContext(state.task, state.asset, state.stage, userID).WithReason(reason)
	first, err := e.stages.FirstAnnotationStage(ctx, state.task.WorkflowID)
	if err != nil {
		var alertIDs []string
		if services.KindOf(err) == services.KindConfiguration {
			if id := e.alertMisconfigured(ctx, logger, pc, err); id != "" {
				alertIDs = append(alertIDs, id)
			}
		}
		return e.fail(ctx, logger, PipelineVeto, state.task, alertIDs, err)
	}
	pc = pc.WithTargetStage(first)

	steps := []Step{
		NewStatusUpdateStep(e.tasks, store.StatusVetoed),
		NewAssetTransferStep(e.assets, e.sources, TransferToAnnotation),
		NewTaskManagementStep(e.tasks, e.stages, TaskChangesRequired),
	}

	e.checkIntegrity(ctx, logger, state.asset.ID)
	logger.Info("veto pipeline started",
		logging.EventType("pipeline_start"),
		logging.UserID(pc.UserID()),
		logging.AssetID(state.asset.ID),
		logging.String("annotation_stage", first.Name),
		logging.String("reason", pc.Reason()),
	)

	out, err := e.run(ctx, logger, PipelineVeto, pc, steps)
	if err != nil {
		return e.fail(ctx, logger, PipelineVeto, state.task, out.alertIDs, err)
	}
	return e.finish(ctx, logger, PipelineVeto, out)
}

// CanVetoTask reports whether userID may veto the task now.
func (e *Engine) CanVetoTask(ctx context.Context, taskID int64, userID string) bool {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil || task == nil {
		return false
	}
	stage, err := e.stages.Stage(ctx, task.WorkflowStageID)
	if err != nil || stage == nil {
		return false
	}
	return checkCanVeto(task, stage, userID) == nil
}

func checkCanVeto(task *store.Task, stage *store.WorkflowStage, userID string) error {
	if stage.StageType == store.StageAnnotation {
		return services.Wrap(services.ErrPrecondition, component, PipelineVeto,
			fmt.Sprintf("task %d is at annotation stage %q; annotation tasks cannot be vetoed", task.ID, stage.Name), ErrAnnotationVeto)
	}
	if task.Status == store.StatusVetoed {
		return services.Wrap(services.ErrPrecondition, component, PipelineVeto,
			fmt.Sprintf("task %d is already vetoed", task.ID), ErrAlreadyVetoed)
	}
	return checkCanExecute(task, userID, PipelineVeto)
}
