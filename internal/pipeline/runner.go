package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"labelflow/internal/alerts"
	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
)

const component = "pipeline"

// Step names.
const (
	StepStatusUpdate   = "status_update"
	StepAssetTransfer  = "asset_transfer"
	StepTaskManagement = "task_management"
)

// Pipeline names.
const (
	PipelineCompletion = "completion"
	PipelineVeto       = "veto"
	PipelineTransition = "transition"
)

type executedStep struct {
	step Step
	pc   Context
}

type rollbackFailure struct {
	step string
	err  error
}

type runOutcome struct {
	final    Context
	alertIDs []string
}

// run executes steps in order. On the first failure every step that already
// completed is rolled back in reverse order; the failing step is not.
func (e *Engine) run(ctx context.Context, logger *slog.Logger, name string, pc Context, steps []Step) (runOutcome, error) {
	executed := make([]executedStep, 0, len(steps))
	current := pc
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			stepErr := services.Wrap(services.ErrStepFailed, component, step.Name(), "run cancelled before step", err)
			return e.compensate(ctx, logger, name, pc, executed, step.Name(), stepErr)
		}

		stepLogger := logger.With(logging.Step(step.Name()))
		stepLogger.Debug("pipeline step started", logging.EventType("step_start"))

		next, err := executeStep(ctx, step, current)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || services.KindOf(err) == services.KindTransient {
				err = services.Wrap(services.ErrStepFailed, component, step.Name(), "step failed", err)
			}
			return e.compensate(ctx, logger, name, pc, executed, step.Name(), err)
		}
		executed = append(executed, executedStep{step: step, pc: next})
		current = next

		stepLogger.Debug("pipeline step completed", logging.EventType("step_complete"))
	}
	return runOutcome{final: current}, nil
}

func (e *Engine) compensate(ctx context.Context, logger *slog.Logger, name string, pc Context, executed []executedStep, failedStep string, stepErr error) (runOutcome, error) {
	logging.WarnWithContext(logger, "pipeline step failed; rolling back", "step_failure",
		logging.Step(failedStep),
		logging.Kind(services.KindOf(stepErr)),
		logging.Error(stepErr),
		logging.Int("steps_to_undo", len(executed)),
		logging.Hint(services.Details(stepErr).Message),
		logging.Impact("earlier steps of this run are being reverted"),
	)

	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.rollbackTimeout)
	defer cancel()

	var outcome runOutcome
	if services.KindOf(stepErr) == services.KindConfiguration {
		if id := e.alertMisconfigured(rbCtx, logger, pc, stepErr); id != "" {
			outcome.alertIDs = append(outcome.alertIDs, id)
		}
	}

	var failures []rollbackFailure
	for i := len(executed) - 1; i >= 0; i-- {
		entry := executed[i]
		if err := rollbackStep(rbCtx, entry.step, entry.pc); err != nil {
			logging.ErrorWithContext(logger, "pipeline step rollback failed", "rollback_failed",
				logging.Step(entry.step.Name()),
				logging.Error(err),
				logging.Hint("inspect the task and asset; manual repair may be needed"),
			)
			failures = append(failures, rollbackFailure{step: entry.step.Name(), err: err})
			continue
		}
		logger.Info("pipeline step rolled back",
			logging.EventType("rollback_complete"),
			logging.Step(entry.step.Name()),
		)
	}

	if len(failures) == 0 {
		outcome.final = pc
		return outcome, stepErr
	}

	causes := []error{stepErr}
	for _, f := range failures {
		causes = append(causes, fmt.Errorf("%s rollback: %w", f.step, f.err))
	}
	message := fmt.Sprintf("%s pipeline failed at %s and %d rollback(s) failed", name, failedStep, len(failures))
	rollbackErr := services.Wrap(services.ErrRollbackFailed, component, name, message, errors.Join(causes...))

	if id := e.alertRollbackFailed(rbCtx, logger, name, pc, failedStep, stepErr, failures); id != "" {
		outcome.alertIDs = append(outcome.alertIDs, id)
	}
	outcome.final = pc
	return outcome, rollbackErr
}

func (e *Engine) alertRollbackFailed(ctx context.Context, logger *slog.Logger, name string, pc Context, failedStep string, stepErr error, failures []rollbackFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.step, f.err))
	}
	rollbackErrors := strings.Join(parts, "; ")

	extra := map[string]string{
		"pipeline":          name,
		"failed_step":       failedStep,
		"original_error":    stepErr.Error(),
		"rollback_failures": rollbackErrors,
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		extra["correlation_id"] = rid
	}
	return e.raise(ctx, logger, alerts.Request{
		Type:     alerts.TypeRollbackFailed,
		Severity: store.SeverityCritical,
		TaskID:   pc.taskID(),
		AssetID:  pc.assetID(),
		UserID:   pc.UserID(),
		Reason:   fmt.Sprintf("%s pipeline could not undo %d step(s) after %s failed", name, len(failures), failedStep),
		Error:    fmt.Sprintf("%s (original error: %v)", rollbackErrors, stepErr),
		Extra:    extra,
	})
}

func (e *Engine) alertMisconfigured(ctx context.Context, logger *slog.Logger, pc Context, err error) string {
	extra := map[string]string{}
	if stage := pc.CurrentStage(); stage != nil {
		extra["workflow_id"] = fmt.Sprint(stage.WorkflowID)
		extra["stage"] = stage.Name
	}
	if name, ok := services.PipelineFromContext(ctx); ok {
		extra["pipeline"] = name
	}
	return e.raise(ctx, logger, alerts.Request{
		Type:     alerts.TypeWorkflowMisconfigured,
		Severity: store.SeverityCritical,
		TaskID:   pc.taskID(),
		AssetID:  pc.assetID(),
		UserID:   pc.UserID(),
		Reason:   services.Details(err).Message,
		Error:    err.Error(),
		Extra:    extra,
	})
}

// raise records an alert and escalates it. Alerting failures are logged and
// never change the run's outcome.
func (e *Engine) raise(ctx context.Context, logger *slog.Logger, req alerts.Request) string {
	if e.alerts == nil {
		return ""
	}
	alert, err := e.alerts.CreateAlert(ctx, req)
	if err != nil {
		logging.ErrorWithContext(logger, "management alert could not be raised", "alert_failed",
			logging.Alert(req.Type),
			logging.String("reason", req.Reason),
			logging.Error(err),
		)
		return ""
	}
	if err := e.alerts.SendCriticalNotifications(ctx, alert); err != nil {
		logger.Debug("critical alert notification failed", logging.Alert(alert.Type), logging.Error(err))
	}
	return alert.ID
}

func executeStep(ctx context.Context, step Step, pc Context) (next Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = pc
			err = services.Wrap(services.ErrStepFailed, component, step.Name(), fmt.Sprintf("step panicked: %v", r), nil)
		}
	}()
	return step.Execute(ctx, pc)
}

func rollbackStep(ctx context.Context, step Step, pc Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rollback panicked: %v", r)
		}
	}()
	return step.Rollback(ctx, pc)
}
