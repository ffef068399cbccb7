package stagegraph_test

import (
	"context"
	"testing"
	"time"

	"labelflow/internal/stagegraph"
	"labelflow/internal/store"
)

type countingSource struct {
	stages   map[int64]*store.WorkflowStage
	outgoing map[int64][]*store.StageConnection
	calls    map[string]int
}

func newCountingSource() *countingSource {
	return &countingSource{
		stages: map[int64]*store.WorkflowStage{
			1: {ID: 1, WorkflowID: 1, Name: "Annotate", StageOrder: 1, StageType: store.StageAnnotation},
			2: {ID: 2, WorkflowID: 1, Name: "Review", StageOrder: 2, StageType: store.StageRevision},
		},
		outgoing: map[int64][]*store.StageConnection{
			1: {{ID: 1, FromStageID: 1, ToStageID: 2}},
		},
		calls: map[string]int{},
	}
}

func (s *countingSource) GetStage(_ context.Context, id int64) (*store.WorkflowStage, error) {
	s.calls["get"]++
	return s.stages[id], nil
}

func (s *countingSource) ListStages(_ context.Context, workflowID int64) ([]*store.WorkflowStage, error) {
	s.calls["list"]++
	var out []*store.WorkflowStage
	for _, id := range []int64{1, 2} {
		if stage := s.stages[id]; stage.WorkflowID == workflowID {
			out = append(out, stage)
		}
	}
	return out, nil
}

func (s *countingSource) OutgoingConnections(_ context.Context, stageID int64) ([]*store.StageConnection, error) {
	s.calls["outgoing"]++
	return s.outgoing[stageID], nil
}

func (s *countingSource) IncomingConnections(_ context.Context, _ int64) ([]*store.StageConnection, error) {
	s.calls["incoming"]++
	return nil, nil
}

func TestCachedSourceMemoizesReads(t *testing.T) {
	src := newCountingSource()
	cached := stagegraph.NewCachedSource(src, 16, time.Minute)
	resolver := stagegraph.NewResolver(cached, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		next, err := resolver.NextStage(ctx, 1)
		if err != nil {
			t.Fatalf("NextStage failed: %v", err)
		}
		if next == nil || next.ID != 2 {
			t.Fatalf("unexpected next stage: %#v", next)
		}
	}
	if src.calls["outgoing"] != 1 || src.calls["get"] != 1 {
		t.Fatalf("expected one load per key, got %v", src.calls)
	}

	if _, err := resolver.FirstAnnotationStage(ctx, 1); err != nil {
		t.Fatalf("FirstAnnotationStage failed: %v", err)
	}
	if _, err := resolver.FirstAnnotationStage(ctx, 1); err != nil {
		t.Fatalf("FirstAnnotationStage failed: %v", err)
	}
	if src.calls["list"] != 1 {
		t.Fatalf("expected one list load, got %d", src.calls["list"])
	}
}

func TestCachedSourceSkipsMissingStages(t *testing.T) {
	src := newCountingSource()
	cached := stagegraph.NewCachedSource(src, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		stage, err := cached.GetStage(ctx, 99)
		if err != nil || stage != nil {
			t.Fatalf("GetStage(99) = %#v, %v; want nil, nil", stage, err)
		}
	}
	if src.calls["get"] != 2 {
		t.Fatalf("expected missing stage to be re-read, got %d calls", src.calls["get"])
	}
}

func TestCachedSourceDisabled(t *testing.T) {
	src := newCountingSource()
	if got := stagegraph.NewCachedSource(src, 0, time.Minute); got != stagegraph.Source(src) {
		t.Fatal("expected size 0 to return the underlying source")
	}
}

func TestCachedSourceHandsOutCopies(t *testing.T) {
	src := newCountingSource()
	cached := stagegraph.NewCachedSource(src, 16, time.Minute)
	ctx := context.Background()

	first, err := cached.GetStage(ctx, 1)
	if err != nil || first == nil {
		t.Fatalf("GetStage(1) = %#v, %v", first, err)
	}
	first.Name = "Mutated"

	again, err := cached.GetStage(ctx, 1)
	if err != nil {
		t.Fatalf("GetStage(1): %v", err)
	}
	if again.Name != "Annotate" {
		t.Fatalf("cached stage name = %q, want Annotate", again.Name)
	}

	listed, err := cached.ListStages(ctx, 1)
	if err != nil || len(listed) != 2 {
		t.Fatalf("ListStages = %#v, %v", listed, err)
	}
	listed[1].StageType = store.StageCompletion
	listed, _ = cached.ListStages(ctx, 1)
	if listed[1].StageType != store.StageRevision {
		t.Fatalf("cached stage type = %s, want REVISION", listed[1].StageType)
	}
	if src.calls["get"] != 1 || src.calls["list"] != 1 {
		t.Fatalf("expected cached reads, got %v", src.calls)
	}
}
