package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dataSourceColumns = "id, project_id, name, kind, bucket, created_at"

func scanDataSource(scanner rowScanner) (*DataSource, error) {
	var (
		ds         DataSource
		kind       string
		bucket     sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&ds.ID, &ds.ProjectID, &ds.Name, &kind, &bucket, &createdRaw); err != nil {
		return nil, err
	}
	ds.Kind = DataSourceKind(kind)
	ds.Bucket = bucket.String
	if created, err := parseTimeString(createdRaw); err == nil {
		ds.CreatedAt = created
	}
	return &ds, nil
}

// CreateDataSource inserts a data source for a project.
func (s *Store) CreateDataSource(ctx context.Context, projectID int64, name string, kind DataSourceKind, bucket string) (*DataSource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create data source: name is required")
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO data_sources (project_id, name, kind, bucket, created_at) VALUES (?, ?, ?, ?, ?)`,
		projectID,
		name,
		kind,
		nullableString(strings.TrimSpace(bucket)),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert data source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetDataSource(ctx, id)
}

// GetDataSource fetches a data source by id. A missing row yields (nil, nil).
func (s *Store) GetDataSource(ctx context.Context, id int64) (*DataSource, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+dataSourceColumns+` FROM data_sources WHERE id = ?`, id)
	ds, err := scanDataSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get data source %d: %w", id, err)
	}
	return ds, nil
}

// AnnotationDataSource resolves the canonical annotation data source of a
// project: the oldest ANNOTATION-kind data source. (nil, nil) when the project
// has none.
func (s *Store) AnnotationDataSource(ctx context.Context, projectID int64) (*DataSource, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+dataSourceColumns+` FROM data_sources WHERE project_id = ? AND kind = ? ORDER BY id LIMIT 1`,
		projectID,
		DataSourceAnnotation,
	)
	ds, err := scanDataSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("annotation data source for project %d: %w", projectID, err)
	}
	return ds, nil
}
