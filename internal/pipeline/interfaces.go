package pipeline

import (
	"context"

	"labelflow/internal/alerts"
	"labelflow/internal/store"
)

// TaskStore persists tasks.
type TaskStore interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	FindTaskByAssetAndStage(ctx context.Context, assetID, stageID int64) (*store.Task, error)
	CreateTask(ctx context.Context, spec store.NewTask) (*store.Task, error)
	UpdateTaskStatus(ctx context.Context, task *store.Task, status store.TaskStatus, userID string) (*store.Task, error)
	SaveTask(ctx context.Context, task *store.Task) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasksByAsset(ctx context.Context, assetID int64) ([]*store.Task, error)
}

// AssetStore reads assets and moves them between data sources.
type AssetStore interface {
	GetAsset(ctx context.Context, id int64) (*store.Asset, error)
	TransferAsset(ctx context.Context, assetID, dataSourceID int64) (bool, error)
}

// DataSourceResolver finds a project's canonical annotation data source.
type DataSourceResolver interface {
	AnnotationDataSource(ctx context.Context, projectID int64) (*store.DataSource, error)
}

// StageResolver answers the stage graph queries the pipelines need.
type StageResolver interface {
	Stage(ctx context.Context, id int64) (*store.WorkflowStage, error)
	NextStage(ctx context.Context, currentStageID int64) (*store.WorkflowStage, error)
	FirstAnnotationStage(ctx context.Context, workflowID int64) (*store.WorkflowStage, error)
}

// AlertSink records and escalates management alerts.
type AlertSink interface {
	CreateAlert(ctx context.Context, req alerts.Request) (*store.Alert, error)
	SendCriticalNotifications(ctx context.Context, alert *store.Alert) error
}

// Step is one reversible unit of work in a pipeline run.
//
// Execute performs a single persisted change and returns a new Context that
// reflects it. Rollback undoes that change using only state captured during
// Execute; it returns nil when the change was undone or never happened.
type Step interface {
	Name() string
	Execute(ctx context.Context, pc Context) (Context, error)
	Rollback(ctx context.Context, pc Context) error
}
