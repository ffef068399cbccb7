package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const assetColumns = "id, project_id, data_source_id, status, object_key, created_at, updated_at"

func scanAsset(scanner rowScanner) (*Asset, error) {
	var (
		asset      Asset
		objectKey  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&asset.ID,
		&asset.ProjectID,
		&asset.DataSourceID,
		&asset.Status,
		&objectKey,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	asset.ObjectKey = objectKey.String
	if created, err := parseTimeString(createdRaw); err == nil {
		asset.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		asset.UpdatedAt = updated
	}
	return &asset, nil
}

// CreateAsset inserts an asset staged in dataSourceID.
func (s *Store) CreateAsset(ctx context.Context, projectID, dataSourceID int64, objectKey string) (*Asset, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO assets (project_id, data_source_id, status, object_key, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		projectID,
		dataSourceID,
		AssetStatusActive,
		nullableString(objectKey),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetAsset(ctx, id)
}

// AssetStatusActive is the status assigned to newly imported assets.
const AssetStatusActive = "ACTIVE"

// GetAsset fetches an asset by id. A missing asset yields (nil, nil).
func (s *Store) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %d: %w", id, err)
	}
	return asset, nil
}

// TransferAsset points the asset at dataSourceID. It reports false when the
// asset does not exist.
func (s *Store) TransferAsset(ctx context.Context, assetID, dataSourceID int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET data_source_id = ?, updated_at = ? WHERE id = ?`,
		dataSourceID,
		formatTime(time.Now().UTC()),
		assetID,
	)
	if err != nil {
		return false, fmt.Errorf("transfer asset %d to data source %d: %w", assetID, dataSourceID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transfer asset %d: %w", assetID, err)
	}
	return affected > 0, nil
}
