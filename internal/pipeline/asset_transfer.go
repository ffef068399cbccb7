package pipeline

import (
	"context"
	"fmt"

	"labelflow/internal/services"
)

// TransferMode selects where AssetTransferStep sends the asset.
type TransferMode int

const (
	// TransferForward moves the asset into the target stage's data source.
	TransferForward TransferMode = iota
	// TransferToAnnotation moves the asset into the project's annotation data source.
	TransferToAnnotation
)

func (m TransferMode) String() string {
	switch m {
	case TransferForward:
		return "forward"
	case TransferToAnnotation:
		return "to_annotation"
	default:
		return fmt.Sprintf("TransferMode(%d)", int(m))
	}
}

// AssetTransferStep repoints the context asset at another data source.
type AssetTransferStep struct {
	assets  AssetStore
	sources DataSourceResolver
	mode    TransferMode

	assetID  int64
	previous int64
	moved    bool
}

// NewAssetTransferStep returns a transfer step for mode. sources is only
// consulted by TransferToAnnotation.
func NewAssetTransferStep(assets AssetStore, sources DataSourceResolver, mode TransferMode) *AssetTransferStep {
	return &AssetTransferStep{assets: assets, sources: sources, mode: mode}
}

func (s *AssetTransferStep) Name() string { return StepAssetTransfer }

func (s *AssetTransferStep) Execute(ctx context.Context, pc Context) (Context, error) {
	asset := pc.Asset()
	if asset == nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepAssetTransfer, "no asset in pipeline context", nil)
	}
	dest, err := s.destination(ctx, pc, asset.ProjectID)
	if err != nil {
		return pc, err
	}
	if err := s.transfer(ctx, asset.ID, dest); err != nil {
		return pc, services.Wrap(services.ErrStepFailed, component, StepAssetTransfer,
			fmt.Sprintf("move asset %d to data source %d", asset.ID, dest), err)
	}
	s.assetID = asset.ID
	s.previous = asset.DataSourceID
	s.moved = true

	asset.DataSourceID = dest
	return pc.WithAsset(asset), nil
}

func (s *AssetTransferStep) Rollback(ctx context.Context, _ Context) error {
	if !s.moved {
		return nil
	}
	if err := s.transfer(ctx, s.assetID, s.previous); err != nil {
		return fmt.Errorf("return asset %d to data source %d: %w", s.assetID, s.previous, err)
	}
	return nil
}

func (s *AssetTransferStep) destination(ctx context.Context, pc Context, projectID int64) (int64, error) {
	switch s.mode {
	case TransferForward:
		target := pc.TargetStage()
		if target == nil {
			return 0, services.Wrap(services.ErrConfiguration, component, StepAssetTransfer, "no target stage to transfer into", nil)
		}
		if target.TargetDataSourceID == nil {
			return 0, services.Wrap(services.ErrConfiguration, component, StepAssetTransfer,
				fmt.Sprintf("stage %q has no target data source", target.Name), nil)
		}
		return *target.TargetDataSourceID, nil
	case TransferToAnnotation:
		if s.sources == nil {
			return 0, services.Wrap(services.ErrConfiguration, component, StepAssetTransfer, "annotation data source lookup unavailable", nil)
		}
		ds, err := s.sources.AnnotationDataSource(ctx, projectID)
		if err != nil {
			return 0, services.Wrap(services.ErrStepFailed, component, StepAssetTransfer,
				fmt.Sprintf("look up annotation data source for project %d", projectID), err)
		}
		if ds == nil {
			return 0, services.Wrap(services.ErrConfiguration, component, StepAssetTransfer,
				fmt.Sprintf("project %d has no annotation data source", projectID), nil)
		}
		return ds.ID, nil
	default:
		return 0, services.Wrap(services.ErrConfiguration, component, StepAssetTransfer,
			fmt.Sprintf("unknown transfer mode %s", s.mode), nil)
	}
}

func (s *AssetTransferStep) transfer(ctx context.Context, assetID, dataSourceID int64) error {
	ok, err := s.assets.TransferAsset(ctx, assetID, dataSourceID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("asset %d not found", assetID)
	}
	return nil
}
