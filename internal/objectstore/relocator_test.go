package objectstore_test

import (
	"context"
	"errors"
	"testing"

	"labelflow/internal/config"
	"labelflow/internal/logging"
	"labelflow/internal/objectstore"
	"labelflow/internal/store"
	"labelflow/internal/testsupport"
)

type moveCall struct {
	src, dst, key string
}

type fakeMover struct {
	calls []moveCall
	err   error
}

func (m *fakeMover) Move(_ context.Context, src, dst, key string) error {
	m.calls = append(m.calls, moveCall{src, dst, key})
	return m.err
}

func TestRelocatorMovesObjectBetweenBuckets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	src, err := st.CreateDataSource(ctx, 1, "annotation", store.DataSourceAnnotation, "annotation-bucket")
	if err != nil {
		t.Fatalf("CreateDataSource failed: %v", err)
	}
	dst, err := st.CreateDataSource(ctx, 1, "review", store.DataSourceRevision, "review-bucket")
	if err != nil {
		t.Fatalf("CreateDataSource failed: %v", err)
	}
	asset, err := st.CreateAsset(ctx, 1, src.ID, "images/cat.png")
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	mover := &fakeMover{}
	relocator := objectstore.NewRelocator(st, st, mover, logging.NewNop())

	ok, err := relocator.TransferAsset(ctx, asset.ID, dst.ID)
	if err != nil || !ok {
		t.Fatalf("TransferAsset = %v, %v; want true, nil", ok, err)
	}
	if len(mover.calls) != 1 || mover.calls[0] != (moveCall{"annotation-bucket", "review-bucket", "images/cat.png"}) {
		t.Fatalf("unexpected move calls: %#v", mover.calls)
	}
	moved, err := relocator.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if moved.DataSourceID != dst.ID {
		t.Fatalf("data source = %d, want %d", moved.DataSourceID, dst.ID)
	}
}

func TestRelocatorSkipsBucketlessSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	src, _ := st.CreateDataSource(ctx, 1, "annotation", store.DataSourceAnnotation, "")
	dst, _ := st.CreateDataSource(ctx, 1, "review", store.DataSourceRevision, "review-bucket")
	asset, err := st.CreateAsset(ctx, 1, src.ID, "images/dog.png")
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	mover := &fakeMover{}
	relocator := objectstore.NewRelocator(st, st, mover, nil)
	if ok, err := relocator.TransferAsset(ctx, asset.ID, dst.ID); err != nil || !ok {
		t.Fatalf("TransferAsset = %v, %v; want true, nil", ok, err)
	}
	if len(mover.calls) != 0 {
		t.Fatalf("expected no object moves, got %#v", mover.calls)
	}
}

func TestRelocatorLeavesPointerWhenMoveFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	src, _ := st.CreateDataSource(ctx, 1, "annotation", store.DataSourceAnnotation, "a")
	dst, _ := st.CreateDataSource(ctx, 1, "review", store.DataSourceRevision, "b")
	asset, err := st.CreateAsset(ctx, 1, src.ID, "k")
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	mover := &fakeMover{err: errors.New("access denied")}
	relocator := objectstore.NewRelocator(st, st, mover, nil)
	if ok, err := relocator.TransferAsset(ctx, asset.ID, dst.ID); err == nil || ok {
		t.Fatalf("TransferAsset = %v, %v; want false, error", ok, err)
	}
	unchanged, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset failed: %v", err)
	}
	if unchanged.DataSourceID != src.ID {
		t.Fatalf("data source = %d, want %d", unchanged.DataSourceID, src.ID)
	}
}

func TestRelocatorMissingAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	relocator := objectstore.NewRelocator(st, st, &fakeMover{}, nil)
	ok, err := relocator.TransferAsset(context.Background(), 404, 1)
	if err != nil || ok {
		t.Fatalf("TransferAsset = %v, %v; want false, nil", ok, err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.ObjectStore
		ok   bool
	}{
		{"missing endpoint", config.ObjectStore{AccessKey: "a", SecretKey: "b"}, false},
		{"missing credentials", config.ObjectStore{Endpoint: "localhost:9000"}, false},
		{"valid", config.ObjectStore{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}, true},
	}
	for _, tc := range cases {
		client, err := objectstore.New(tc.cfg)
		if tc.ok && (err != nil || client == nil) {
			t.Fatalf("%s: expected client, got %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
