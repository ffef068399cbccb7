package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const stageColumns = "id, workflow_id, name, stage_order, stage_type, is_initial, is_final, input_data_source_id, target_data_source_id"

func scanStage(scanner rowScanner) (*WorkflowStage, error) {
	var (
		stage     WorkflowStage
		stageType string
		initial   int
		final     int
		input     sql.NullInt64
		target    sql.NullInt64
	)
	if err := scanner.Scan(
		&stage.ID,
		&stage.WorkflowID,
		&stage.Name,
		&stage.StageOrder,
		&stageType,
		&initial,
		&final,
		&input,
		&target,
	); err != nil {
		return nil, err
	}
	stage.StageType = StageType(stageType)
	stage.IsInitialStage = initial != 0
	stage.IsFinalStage = final != 0
	stage.InputDataSourceID = ptrInt64(input)
	stage.TargetDataSourceID = ptrInt64(target)
	return &stage, nil
}

// CreateWorkflow inserts a workflow for a project.
func (s *Store) CreateWorkflow(ctx context.Context, projectID int64, name string) (*Workflow, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create workflow: name is required")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO workflows (project_id, name, created_at) VALUES (?, ?, ?)`,
		projectID,
		name,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Workflow{ID: id, ProjectID: projectID, Name: name, CreatedAt: now}, nil
}

// GetWorkflow fetches a workflow by id. A missing row yields (nil, nil).
func (s *Store) GetWorkflow(ctx context.Context, id int64) (*Workflow, error) {
	var (
		wf         Workflow
		createdRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, project_id, name, created_at FROM workflows WHERE id = ?`, id,
	).Scan(&wf.ID, &wf.ProjectID, &wf.Name, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %d: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		wf.CreatedAt = created
	}
	return &wf, nil
}

// CreateStage inserts a stage. Stage order and name must be unique within the
// workflow.
func (s *Store) CreateStage(ctx context.Context, stage WorkflowStage) (*WorkflowStage, error) {
	if stage.WorkflowID == 0 {
		return nil, errors.New("create stage: workflow is required")
	}
	if _, ok := ParseStageType(string(stage.StageType)); !ok {
		return nil, fmt.Errorf("create stage: unknown stage type %q", stage.StageType)
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO workflow_stages (
            workflow_id, name, stage_order, stage_type, is_initial, is_final,
            input_data_source_id, target_data_source_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stage.WorkflowID,
		strings.TrimSpace(stage.Name),
		stage.StageOrder,
		stage.StageType,
		boolToInt(stage.IsInitialStage),
		boolToInt(stage.IsFinalStage),
		nullableInt64(stage.InputDataSourceID),
		nullableInt64(stage.TargetDataSourceID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetStage(ctx, id)
}

// GetStage fetches a stage by id. A missing row yields (nil, nil).
func (s *Store) GetStage(ctx context.Context, id int64) (*WorkflowStage, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+stageColumns+` FROM workflow_stages WHERE id = ?`, id)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stage %d: %w", id, err)
	}
	return stage, nil
}

// ListStages returns the workflow's stages ordered by stage order.
func (s *Store) ListStages(ctx context.Context, workflowID int64) ([]*WorkflowStage, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+stageColumns+` FROM workflow_stages WHERE workflow_id = ? ORDER BY stage_order, id`,
		workflowID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []*WorkflowStage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// ConnectStages inserts a directed edge. Both stages must belong to the same
// workflow.
func (s *Store) ConnectStages(ctx context.Context, fromID, toID int64, condition string) (*StageConnection, error) {
	from, err := s.GetStage(ctx, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.GetStage(ctx, toID)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, fmt.Errorf("connect stages %d -> %d: %w", fromID, toID, ErrNotFound)
	}
	if from.WorkflowID != to.WorkflowID {
		return nil, fmt.Errorf("connect stages %d -> %d: stages belong to different workflows", fromID, toID)
	}
	condition = strings.TrimSpace(condition)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO stage_connections (from_stage_id, to_stage_id, condition) VALUES (?, ?, ?)`,
		fromID,
		toID,
		condition,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stage connection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &StageConnection{ID: id, FromStageID: fromID, ToStageID: toID, Condition: condition}, nil
}

// OutgoingConnections returns the edges leaving stageID in insertion order.
func (s *Store) OutgoingConnections(ctx context.Context, stageID int64) ([]*StageConnection, error) {
	return s.queryConnections(ctx, `WHERE from_stage_id = ?`, stageID)
}

// IncomingConnections returns the edges entering stageID in insertion order.
func (s *Store) IncomingConnections(ctx context.Context, stageID int64) ([]*StageConnection, error) {
	return s.queryConnections(ctx, `WHERE to_stage_id = ?`, stageID)
}

// ConnectionExists reports whether any edge leads from fromID to toID.
func (s *Store) ConnectionExists(ctx context.Context, fromID, toID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM stage_connections WHERE from_stage_id = ? AND to_stage_id = ?`,
		fromID,
		toID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("connection exists %d -> %d: %w", fromID, toID, err)
	}
	return count > 0, nil
}

func (s *Store) queryConnections(ctx context.Context, where string, arg int64) ([]*StageConnection, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, from_stage_id, to_stage_id, condition FROM stage_connections `+where+` ORDER BY id`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query stage connections: %w", err)
	}
	defer rows.Close()

	var conns []*StageConnection
	for rows.Next() {
		var conn StageConnection
		if err := rows.Scan(&conn.ID, &conn.FromStageID, &conn.ToStageID, &conn.Condition); err != nil {
			return nil, fmt.Errorf("scan stage connection: %w", err)
		}
		conns = append(conns, &conn)
	}
	return conns, rows.Err()
}
