package testsupport

import (
	"context"
	"testing"

	"labelflow/internal/config"
	"labelflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Workflow captures the ids of a seeded three-stage workflow.
type Workflow struct {
	ProjectID  int64
	WorkflowID int64

	AnnotationSource *store.DataSource
	ReviewSource     *store.DataSource
	CompletionSource *store.DataSource

	Annotation *store.WorkflowStage
	Review     *store.WorkflowStage
	Completion *store.WorkflowStage
}

// SeedWorkflow creates a linear Annotation -> Review -> Completion workflow
// for projectID, each stage targeting its own data source.
func SeedWorkflow(t testing.TB, st *store.Store, projectID int64) *Workflow {
	t.Helper()
	ctx := context.Background()

	wf := &Workflow{ProjectID: projectID}
	wf.AnnotationSource = mustDataSource(t, st, projectID, "annotation", store.DataSourceAnnotation)
	wf.ReviewSource = mustDataSource(t, st, projectID, "review", store.DataSourceRevision)
	wf.CompletionSource = mustDataSource(t, st, projectID, "completion", store.DataSourceCompletion)

	workflow, err := st.CreateWorkflow(ctx, projectID, "default")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	wf.WorkflowID = workflow.ID

	wf.Annotation = MustCreateStage(t, st, store.WorkflowStage{
		WorkflowID:         workflow.ID,
		Name:               "Annotate",
		StageOrder:         1,
		StageType:          store.StageAnnotation,
		IsInitialStage:     true,
		TargetDataSourceID: &wf.AnnotationSource.ID,
	})
	wf.Review = MustCreateStage(t, st, store.WorkflowStage{
		WorkflowID:         workflow.ID,
		Name:               "Review",
		StageOrder:         2,
		StageType:          store.StageRevision,
		InputDataSourceID:  &wf.AnnotationSource.ID,
		TargetDataSourceID: &wf.ReviewSource.ID,
	})
	wf.Completion = MustCreateStage(t, st, store.WorkflowStage{
		WorkflowID:         workflow.ID,
		Name:               "Complete",
		StageOrder:         3,
		StageType:          store.StageCompletion,
		IsFinalStage:       true,
		InputDataSourceID:  &wf.ReviewSource.ID,
		TargetDataSourceID: &wf.CompletionSource.ID,
	})

	MustConnect(t, st, wf.Annotation.ID, wf.Review.ID, "")
	MustConnect(t, st, wf.Review.ID, wf.Completion.ID, "")
	return wf
}

// MustCreateStage inserts a stage or fails the test.
func MustCreateStage(t testing.TB, st *store.Store, stage store.WorkflowStage) *store.WorkflowStage {
	t.Helper()
	created, err := st.CreateStage(context.Background(), stage)
	if err != nil {
		t.Fatalf("CreateStage %q: %v", stage.Name, err)
	}
	return created
}

// MustConnect inserts a stage edge or fails the test.
func MustConnect(t testing.TB, st *store.Store, fromID, toID int64, condition string) {
	t.Helper()
	if _, err := st.ConnectStages(context.Background(), fromID, toID, condition); err != nil {
		t.Fatalf("ConnectStages %d -> %d: %v", fromID, toID, err)
	}
}

// NewAssignedTask creates an asset staged in dataSourceID and a task for it at
// stage, moved to status and assigned to assignee.
func NewAssignedTask(t testing.TB, st *store.Store, wf *Workflow, stage *store.WorkflowStage, dataSourceID int64, status store.TaskStatus, assignee string) (*store.Task, *store.Asset) {
	t.Helper()
	ctx := context.Background()

	asset, err := st.CreateAsset(ctx, wf.ProjectID, dataSourceID, "")
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	task, err := st.CreateTask(ctx, store.NewTask{
		AssetID:          asset.ID,
		WorkflowID:       wf.WorkflowID,
		WorkflowStageID:  stage.ID,
		Status:           status,
		AssignedToUserID: assignee,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return task, asset
}

func mustDataSource(t testing.TB, st *store.Store, projectID int64, name string, kind store.DataSourceKind) *store.DataSource {
	t.Helper()
	ds, err := st.CreateDataSource(context.Background(), projectID, name, kind, "")
	if err != nil {
		t.Fatalf("CreateDataSource %q: %v", name, err)
	}
	return ds
}
