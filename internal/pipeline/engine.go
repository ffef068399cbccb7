package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
)

const defaultRollbackTimeout = time.Minute

// Dependencies are the collaborators an Engine runs against.
type Dependencies struct {
	Tasks       TaskStore
	Assets      AssetStore
	DataSources DataSourceResolver
	Stages      StageResolver
	Alerts      AlertSink
	Locker      Locker
	Logger      *slog.Logger
	// RollbackTimeout bounds compensation after a failed step.
	RollbackTimeout time.Duration
	Now             func() time.Time
}

// Engine runs the completion and veto pipelines.
type Engine struct {
	tasks           TaskStore
	assets          AssetStore
	sources         DataSourceResolver
	stages          StageResolver
	alerts          AlertSink
	locker          Locker
	logger          *slog.Logger
	rollbackTimeout time.Duration
	now             func() time.Time
}

// New validates deps and builds an Engine. A nil Locker falls back to an
// in-process lock without a timeout.
func New(deps Dependencies) (*Engine, error) {
	switch {
	case deps.Tasks == nil:
		return nil, errors.New("pipeline: task store is required")
	case deps.Assets == nil:
		return nil, errors.New("pipeline: asset store is required")
	case deps.DataSources == nil:
		return nil, errors.New("pipeline: data source resolver is required")
	case deps.Stages == nil:
		return nil, errors.New("pipeline: stage resolver is required")
	}
	e := &Engine{
		tasks:           deps.Tasks,
		assets:          deps.Assets,
		sources:         deps.DataSources,
		stages:          deps.Stages,
		alerts:          deps.Alerts,
		locker:          deps.Locker,
		logger:          logging.NewComponentLogger(deps.Logger, component),
		rollbackTimeout: deps.RollbackTimeout,
		now:             deps.Now,
	}
	if e.locker == nil {
		e.locker = NewTaskLocker("", 0, 0)
	}
	if e.rollbackTimeout <= 0 {
		e.rollbackTimeout = defaultRollbackTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// begin tags ctx with the run's identity and returns the matching logger.
func (e *Engine) begin(ctx context.Context, name string, taskID int64) (context.Context, *slog.Logger) {
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	ctx = services.WithPipeline(services.WithTaskID(ctx, taskID), name)
	return ctx, logging.WithContext(ctx, e.logger)
}

// precondition vets a task against its stage before the asset is read.
type precondition func(task *store.Task, stage *store.WorkflowStage) error

// lockAndLoad takes the task lock and loads the task with its stage and
// asset, running check (when set) between the two. On success the caller
// must invoke the returned release function.
func (e *Engine) lockAndLoad(ctx context.Context, taskID int64, check precondition) (func(), *loaded, error) {
	unlock, err := e.locker.Lock(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	state, err := e.load(ctx, taskID, check)
	if err != nil {
		unlock()
		return nil, state, err
	}
	return unlock, state, nil
}

type loaded struct {
	task  *store.Task
	stage *store.WorkflowStage
	asset *store.Asset
}

func (e *Engine) load(ctx context.Context, taskID int64, check precondition) (*loaded, error) {
	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, component, "load task", fmt.Sprintf("load task %d", taskID), err)
	}
	if task == nil {
		return nil, services.Wrap(services.ErrNotFound, component, "load task", fmt.Sprintf("task %d not found", taskID), nil)
	}
	state := &loaded{task: task}

	stage, err := e.stages.Stage(ctx, task.WorkflowStageID)
	if err != nil {
		return state, services.Wrap(services.ErrTransient, component, "load stage",
			fmt.Sprintf("load stage %d", task.WorkflowStageID), err)
	}
	if stage == nil {
		return state, services.Wrap(services.ErrNotFound, component, "load stage",
			fmt.Sprintf("stage %d of task %d not found", task.WorkflowStageID, task.ID), nil)
	}
	state.stage = stage
	if check != nil {
		if err := check(task, stage); err != nil {
			return state, err
		}
	}

	asset, err := e.assets.GetAsset(ctx, task.AssetID)
	if err != nil {
		return state, services.Wrap(services.ErrTransient, component, "load asset",
			fmt.Sprintf("load asset %d", task.AssetID), err)
	}
	if asset == nil {
		return state, services.Wrap(services.ErrNotFound, component, "load asset",
			fmt.Sprintf("asset %d of task %d not found", task.AssetID, task.ID), nil)
	}
	state.asset = asset
	return state, nil
}

// checkCanExecute is the shared completion and veto precondition: the task
// is IN_PROGRESS and assigned to userID.
func checkCanExecute(task *store.Task, userID, operation string) error {
	if task.Status != store.StatusInProgress {
		return services.Wrap(services.ErrPrecondition, component, operation,
			fmt.Sprintf("task %d is %s; only IN_PROGRESS tasks can be %s", task.ID, task.Status, pastTense(operation)), nil)
	}
	if task.AssignedToUserID == "" {
		return services.Wrap(services.ErrPrecondition, component, operation,
			fmt.Sprintf("task %d is not assigned to anyone", task.ID), nil)
	}
	if !task.IsAssignedTo(userID) {
		return services.Wrap(services.ErrPrecondition, component, operation,
			fmt.Sprintf("task %d is assigned to another user", task.ID), nil)
	}
	return nil
}

func pastTense(operation string) string {
	switch operation {
	case PipelineCompletion:
		return "completed"
	case PipelineVeto:
		return "vetoed"
	default:
		return operation + "ed"
	}
}

// checkIntegrity is advisory: violations are logged and never block a run.
func (e *Engine) checkIntegrity(ctx context.Context, logger *slog.Logger, assetID int64) {
	ok, err := ValidateDataIntegrity(ctx, e.tasks, assetID)
	if err != nil {
		logger.Debug("task integrity check skipped", logging.AssetID(assetID), logging.Error(err))
		return
	}
	if !ok {
		logging.WarnWithContext(logger, "asset has more than one task in progress", "integrity_violation",
			logging.Alert("task_integrity_violation"),
			logging.AssetID(assetID),
			logging.Hint("suspend or archive the duplicate in-progress task"),
			logging.Impact("pipeline continues; downstream tasks may be duplicated"),
		)
	}
}

// CheckIntegrity reports whether at most one of the asset's tasks is
// IN_PROGRESS.
func (e *Engine) CheckIntegrity(ctx context.Context, assetID int64) (bool, error) {
	return ValidateDataIntegrity(ctx, e.tasks, assetID)
}

// finish reloads the run's tasks so callers observe persisted state.
func (e *Engine) finish(ctx context.Context, logger *slog.Logger, name string, out runOutcome) Result {
	reloadCtx := context.WithoutCancel(ctx)
	task := out.final.Task()
	if task != nil {
		if fresh, err := e.tasks.GetTask(reloadCtx, task.ID); err == nil && fresh != nil {
			task = fresh
		}
	}
	secondary := out.final.SecondaryTask()
	if secondary != nil {
		if fresh, err := e.tasks.GetTask(reloadCtx, secondary.ID); err == nil && fresh != nil {
			secondary = fresh
		}
	}
	attrs := []logging.Attr{
		logging.EventType("pipeline_complete"),
		logging.String("status", string(statusOf(task))),
	}
	if secondary != nil {
		attrs = append(attrs,
			logging.Int64("secondary_task_id", secondary.ID),
			logging.String("secondary_status", string(secondary.Status)),
		)
	}
	logger.Info(name+" pipeline completed", logging.Args(attrs...)...)
	res := succeeded(task, secondary)
	res.AlertIDs = out.alertIDs
	return res
}

// fail logs err at a level matching its kind and builds the failed Result.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, name string, task *store.Task, alertIDs []string, err error) Result {
	if task != nil {
		if fresh, loadErr := e.tasks.GetTask(context.WithoutCancel(ctx), task.ID); loadErr == nil && fresh != nil {
			task = fresh
		}
	}
	details := services.Details(err)
	attrs := []logging.Attr{
		logging.EventType("pipeline_failure"),
		logging.Kind(details.Kind),
		logging.String("error_message", details.Message),
		logging.Error(err),
	}
	switch details.Kind {
	case services.KindNotFound, services.KindPrecondition:
		logger.Info(name+" pipeline refused", logging.Args(attrs...)...)
	case services.KindRollbackFailed, services.KindConfiguration:
		logging.ErrorWithContext(logger, name+" pipeline failed", "pipeline_failure",
			append(attrs, logging.Hint("see the management alert raised for this task"))...)
	default:
		logging.WarnWithContext(logger, name+" pipeline failed", "pipeline_failure",
			append(attrs,
				logging.Hint("retry the request"),
				logging.Impact("task left unchanged"),
			)...)
	}
	res := failed(task, err)
	res.AlertIDs = alertIDs
	return res
}

func statusOf(task *store.Task) store.TaskStatus {
	if task == nil {
		return ""
	}
	return task.Status
}
