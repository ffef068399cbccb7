package stagegraph_test

import (
	"context"
	"errors"
	"testing"

	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/stagegraph"
	"labelflow/internal/store"
	"labelflow/internal/testsupport"
)

func newResolver(t *testing.T) (*stagegraph.Resolver, *store.Store, *testsupport.Workflow) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	wf := testsupport.SeedWorkflow(t, st, 1)
	return stagegraph.NewResolver(st, logging.NewNop()), st, wf
}

func TestNextStageFollowsSingleEdge(t *testing.T) {
	resolver, _, wf := newResolver(t)

	next, err := resolver.NextStage(context.Background(), wf.Review.ID)
	if err != nil {
		t.Fatalf("NextStage failed: %v", err)
	}
	if next == nil || next.ID != wf.Completion.ID {
		t.Fatalf("expected completion stage, got %#v", next)
	}
}

func TestNextStageTerminalReturnsNil(t *testing.T) {
	resolver, st, wf := newResolver(t)

	terminal := []int64{wf.Completion.ID}
	orphan := testsupport.MustCreateStage(t, st, store.WorkflowStage{
		WorkflowID: wf.WorkflowID,
		Name:       "Orphan",
		StageOrder: 9,
		StageType:  store.StageRevision,
	})
	terminal = append(terminal, orphan.ID)

	for _, id := range terminal {
		next, err := resolver.NextStage(context.Background(), id)
		if err != nil {
			t.Fatalf("stage %d: NextStage returned error: %v", id, err)
		}
		if next != nil {
			t.Fatalf("stage %d: expected nil next stage, got %#v", id, next)
		}
	}
}

func TestNextStageBranching(t *testing.T) {
	resolver, st, wf := newResolver(t)
	ctx := context.Background()

	rework := testsupport.MustCreateStage(t, st, store.WorkflowStage{
		WorkflowID: wf.WorkflowID,
		Name:       "Rework",
		StageOrder: 4,
		StageType:  store.StageRevision,
	})
	testsupport.MustConnect(t, st, wf.Review.ID, rework.ID, "rejected")

	next, err := resolver.NextStage(ctx, wf.Review.ID)
	if err != nil {
		t.Fatalf("NextStage failed: %v", err)
	}
	if next == nil || next.ID != wf.Completion.ID {
		t.Fatalf("expected unconditional edge to win, got %#v", next)
	}

	next, err = resolver.NextStageFor(ctx, wf.Review.ID, "REJECTED")
	if err != nil {
		t.Fatalf("NextStageFor failed: %v", err)
	}
	if next == nil || next.ID != rework.ID {
		t.Fatalf("expected rework stage, got %#v", next)
	}

	if _, err := resolver.NextStageFor(ctx, wf.Review.ID, "escalated"); !errors.Is(err, stagegraph.ErrAmbiguousBranch) {
		t.Fatalf("expected ErrAmbiguousBranch for unknown condition, got %v", err)
	}
}

func TestNextStageAmbiguousWithoutUnconditionalEdge(t *testing.T) {
	resolver, st, wf := newResolver(t)
	ctx := context.Background()

	approved := testsupport.MustCreateStage(t, st, store.WorkflowStage{WorkflowID: wf.WorkflowID, Name: "Approved", StageOrder: 5, StageType: store.StageRevision})
	rejected := testsupport.MustCreateStage(t, st, store.WorkflowStage{WorkflowID: wf.WorkflowID, Name: "Rejected", StageOrder: 6, StageType: store.StageRevision})
	single := testsupport.MustCreateStage(t, st, store.WorkflowStage{WorkflowID: wf.WorkflowID, Name: "Single", StageOrder: 7, StageType: store.StageRevision})
	testsupport.MustConnect(t, st, wf.Completion.ID, approved.ID, "approved")
	testsupport.MustConnect(t, st, wf.Completion.ID, rejected.ID, "rejected")
	testsupport.MustConnect(t, st, approved.ID, single.ID, "approved")

	_, err := resolver.NextStage(ctx, wf.Completion.ID)
	if !errors.Is(err, stagegraph.ErrAmbiguousBranch) {
		t.Fatalf("expected ErrAmbiguousBranch, got %v", err)
	}
	if services.KindOf(err) != services.KindConfiguration {
		t.Fatalf("expected configuration kind, got %s", services.KindOf(err))
	}

	next, err := resolver.NextStage(ctx, approved.ID)
	if err != nil {
		t.Fatalf("NextStage with single labelled edge failed: %v", err)
	}
	if next == nil || next.ID != single.ID {
		t.Fatalf("expected single labelled edge to be followed, got %#v", next)
	}
}

func TestFirstAnnotationStagePicksLowestOrder(t *testing.T) {
	resolver, st, wf := newResolver(t)

	testsupport.MustCreateStage(t, st, store.WorkflowStage{
		WorkflowID: wf.WorkflowID,
		Name:       "Second Pass",
		StageOrder: 10,
		StageType:  store.StageAnnotation,
	})

	first, err := resolver.FirstAnnotationStage(context.Background(), wf.WorkflowID)
	if err != nil {
		t.Fatalf("FirstAnnotationStage failed: %v", err)
	}
	if first.ID != wf.Annotation.ID {
		t.Fatalf("expected stage %d, got %d", wf.Annotation.ID, first.ID)
	}
}

func TestFirstAnnotationStageFailsWithoutAnnotation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	workflow, err := st.CreateWorkflow(ctx, 1, "review-only")
	if err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}
	testsupport.MustCreateStage(t, st, store.WorkflowStage{WorkflowID: workflow.ID, Name: "Review", StageOrder: 1, StageType: store.StageRevision})

	resolver := stagegraph.NewResolver(st, logging.NewNop())
	_, err = resolver.FirstAnnotationStage(ctx, workflow.ID)
	if !errors.Is(err, stagegraph.ErrNoAnnotationStage) {
		t.Fatalf("expected ErrNoAnnotationStage, got %v", err)
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration marker, got %v", err)
	}
}

func TestCompletionPredecessors(t *testing.T) {
	resolver, st, wf := newResolver(t)
	ctx := context.Background()

	testsupport.MustConnect(t, st, wf.Annotation.ID, wf.Completion.ID, "fast-track")

	preds, err := resolver.CompletionPredecessors(ctx, wf.WorkflowID)
	if err != nil {
		t.Fatalf("CompletionPredecessors failed: %v", err)
	}
	got := map[int64]bool{}
	for _, stage := range preds {
		got[stage.ID] = true
	}
	if len(preds) != 2 || !got[wf.Review.ID] || !got[wf.Annotation.ID] {
		t.Fatalf("unexpected predecessors: %#v", preds)
	}

	empty, err := st.CreateWorkflow(ctx, 1, "no-completion")
	if err != nil {
		t.Fatalf("CreateWorkflow failed: %v", err)
	}
	preds, err = resolver.CompletionPredecessors(ctx, empty.ID)
	if err != nil {
		t.Fatalf("CompletionPredecessors failed: %v", err)
	}
	if preds == nil || len(preds) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", preds)
	}
}

func TestConnectionExists(t *testing.T) {
	resolver, _, wf := newResolver(t)
	ctx := context.Background()

	cases := []struct {
		from, to int64
		want     bool
	}{
		{wf.Annotation.ID, wf.Review.ID, true},
		{wf.Review.ID, wf.Completion.ID, true},
		{wf.Review.ID, wf.Annotation.ID, false},
		{wf.Annotation.ID, wf.Completion.ID, false},
	}
	for _, tc := range cases {
		got, err := resolver.ConnectionExists(ctx, tc.from, tc.to)
		if err != nil {
			t.Fatalf("ConnectionExists(%d, %d) failed: %v", tc.from, tc.to, err)
		}
		if got != tc.want {
			t.Fatalf("ConnectionExists(%d, %d) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
