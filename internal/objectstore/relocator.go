package objectstore

import (
	"context"
	"fmt"
	"log/slog"

	"labelflow/internal/logging"
	"labelflow/internal/store"
)

// BlobMover moves one object between buckets.
type BlobMover interface {
	Move(ctx context.Context, srcBucket, dstBucket, key string) error
}

// AssetStore reads and repoints assets.
type AssetStore interface {
	GetAsset(ctx context.Context, id int64) (*store.Asset, error)
	TransferAsset(ctx context.Context, assetID, dataSourceID int64) (bool, error)
}

// DataSources looks up data sources by id.
type DataSources interface {
	GetDataSource(ctx context.Context, id int64) (*store.DataSource, error)
}

// Relocator moves an asset's blob alongside its data source pointer.
type Relocator struct {
	assets  AssetStore
	sources DataSources
	blobs   BlobMover
	logger  *slog.Logger
}

// NewRelocator wraps assets so transfers also relocate the stored object.
func NewRelocator(assets AssetStore, sources DataSources, blobs BlobMover, logger *slog.Logger) *Relocator {
	return &Relocator{
		assets:  assets,
		sources: sources,
		blobs:   blobs,
		logger:  logging.NewComponentLogger(logger, "objectstore"),
	}
}

// GetAsset delegates to the wrapped store.
func (r *Relocator) GetAsset(ctx context.Context, id int64) (*store.Asset, error) {
	return r.assets.GetAsset(ctx, id)
}

// TransferAsset relocates the asset's object into the destination data
// source's bucket, then repoints the asset. It reports false when the asset
// does not exist.
func (r *Relocator) TransferAsset(ctx context.Context, assetID, dataSourceID int64) (bool, error) {
	asset, err := r.assets.GetAsset(ctx, assetID)
	if err != nil {
		return false, err
	}
	if asset == nil {
		return false, nil
	}

	srcBucket, dstBucket, err := r.buckets(ctx, asset.DataSourceID, dataSourceID)
	if err != nil {
		return false, err
	}
	relocate := asset.ObjectKey != "" && srcBucket != "" && dstBucket != "" && srcBucket != dstBucket
	if relocate {
		if err := r.blobs.Move(ctx, srcBucket, dstBucket, asset.ObjectKey); err != nil {
			return false, fmt.Errorf("relocate asset %d: %w", assetID, err)
		}
		r.logger.Debug("asset object relocated",
			logging.AssetID(assetID),
			logging.String("from_bucket", srcBucket),
			logging.String("to_bucket", dstBucket),
			logging.String("object_key", asset.ObjectKey),
		)
	}

	ok, err := r.assets.TransferAsset(ctx, assetID, dataSourceID)
	if (err != nil || !ok) && relocate {
		if undoErr := r.blobs.Move(ctx, dstBucket, srcBucket, asset.ObjectKey); undoErr != nil {
			logging.ErrorWithContext(r.logger, "asset object stranded after failed transfer", "asset_object_stranded",
				logging.AssetID(assetID),
				logging.String("bucket", dstBucket),
				logging.String("object_key", asset.ObjectKey),
				logging.Error(undoErr),
				logging.Hint("move the object back to "+srcBucket+" manually"),
			)
		}
	}
	return ok, err
}

func (r *Relocator) buckets(ctx context.Context, fromID, toID int64) (string, string, error) {
	from, err := r.sources.GetDataSource(ctx, fromID)
	if err != nil {
		return "", "", err
	}
	to, err := r.sources.GetDataSource(ctx, toID)
	if err != nil {
		return "", "", err
	}
	if to == nil {
		return "", "", fmt.Errorf("data source %d: %w", toID, store.ErrNotFound)
	}
	var src string
	if from != nil {
		src = from.Bucket
	}
	return src, to.Bucket, nil
}
