package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"labelflow/internal/logging"
	"labelflow/internal/pipeline"
	"labelflow/internal/store"
	"labelflow/internal/testsupport"
)

func TestNewFromConfigRunsWithLockFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	wf := testsupport.SeedWorkflow(t, st, 1)
	task, asset := testsupport.NewAssignedTask(t, st, wf, wf.Annotation, wf.AnnotationSource.ID, store.StatusInProgress, "u1")

	eng, err := pipeline.NewFromConfig(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	res := eng.CompleteTask(context.Background(), task.ID, "u1")
	if !res.Success {
		t.Fatalf("CompleteTask: %s", res.ErrorMessage)
	}
	moved, err := st.GetAsset(context.Background(), asset.ID)
	if err != nil || moved == nil || moved.DataSourceID != wf.ReviewSource.ID {
		t.Fatalf("asset not transferred: %+v (%v)", moved, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.LockDir(), pipeline.LockFileName(task.ID))); err != nil {
		t.Fatalf("expected lock file: %v", err)
	}
}

func TestNewFromConfigRequiresStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := pipeline.NewFromConfig(cfg, nil, nil); err == nil {
		t.Fatalf("expected error without store")
	}
}
