package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = "id, status, priority, asset_id, workflow_id, workflow_stage_id, assigned_to, last_worked_on_by, version, created_at, updated_at, completed_at, archived_at, suspended_at, deferred_at, vetoed_at, changes_required_at"

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		task            Task
		status          string
		assignedTo      sql.NullString
		lastWorkedOnBy  sql.NullString
		createdRaw      string
		updatedRaw      string
		completedRaw    sql.NullString
		archivedRaw     sql.NullString
		suspendedRaw    sql.NullString
		deferredRaw     sql.NullString
		vetoedRaw       sql.NullString
		changesRequired sql.NullString
	)
	if err := scanner.Scan(
		&task.ID,
		&status,
		&task.Priority,
		&task.AssetID,
		&task.WorkflowID,
		&task.WorkflowStageID,
		&assignedTo,
		&lastWorkedOnBy,
		&task.Version,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
		&archivedRaw,
		&suspendedRaw,
		&deferredRaw,
		&vetoedRaw,
		&changesRequired,
	); err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	task.AssignedToUserID = assignedTo.String
	task.LastWorkedOnByUserID = lastWorkedOnBy.String
	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	task.CompletedAt = parseNullTime(completedRaw)
	task.ArchivedAt = parseNullTime(archivedRaw)
	task.SuspendedAt = parseNullTime(suspendedRaw)
	task.DeferredAt = parseNullTime(deferredRaw)
	task.VetoedAt = parseNullTime(vetoedRaw)
	task.ChangesRequiredAt = parseNullTime(changesRequired)
	return &task, nil
}

// GetTask fetches a task by id. A missing task yields (nil, nil).
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// FindTaskByAssetAndStage returns the task for an asset at a stage. When
// several exist the oldest wins.
func (s *Store) FindTaskByAssetAndStage(ctx context.Context, assetID, stageID int64) (*Task, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE asset_id = ? AND workflow_stage_id = ? ORDER BY id LIMIT 1`,
		assetID,
		stageID,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find task for asset %d stage %d: %w", assetID, stageID, err)
	}
	return task, nil
}

// ListTasksByAsset returns every task bound to the asset.
func (s *Store) ListTasksByAsset(ctx context.Context, assetID int64) ([]*Task, error) {
	return s.ListTasks(ctx, TaskFilter{AssetID: assetID})
}

// ListTasks returns tasks matching the filter ordered by id.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.WorkflowID != 0 {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.StageID != 0 {
		clauses = append(clauses, "workflow_stage_id = ?")
		args = append(args, filter.StageID)
	}
	if filter.AssetID != 0 {
		clauses = append(clauses, "asset_id = ?")
		args = append(args, filter.AssetID)
	}
	if id := strings.TrimSpace(filter.AssigneeID); id != "" {
		clauses = append(clauses, "assigned_to = ?")
		args = append(args, id)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task and returns the stored row.
func (s *Store) CreateTask(ctx context.Context, spec NewTask) (*Task, error) {
	if spec.AssetID == 0 || spec.WorkflowStageID == 0 || spec.WorkflowID == 0 {
		return nil, errors.New("create task: asset, workflow and stage are required")
	}
	status := spec.Status
	if status == "" {
		status = StatusNotStarted
	}

	now := time.Now().UTC()
	task := &Task{Status: StatusNotStarted}
	task.ApplyStatus(status, now)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            status, priority, asset_id, workflow_id, workflow_stage_id, assigned_to, last_worked_on_by,
            version, created_at, updated_at, completed_at, archived_at, suspended_at, deferred_at,
            vetoed_at, changes_required_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.Status,
		spec.Priority,
		spec.AssetID,
		spec.WorkflowID,
		spec.WorkflowStageID,
		nullableString(spec.AssignedToUserID),
		nil,
		formatTime(now),
		formatTime(now),
		nullableTime(task.CompletedAt),
		nullableTime(task.ArchivedAt),
		nullableTime(task.SuspendedAt),
		nullableTime(task.DeferredAt),
		nullableTime(task.VetoedAt),
		nullableTime(task.ChangesRequiredAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// UpdateTaskStatus moves task to status, stamping the matching timestamp and
// recording userID as the last worker. The write is rejected with
// ErrVersionConflict when task.Version is stale. The stored row is returned.
func (s *Store) UpdateTaskStatus(ctx context.Context, task *Task, status TaskStatus, userID string) (*Task, error) {
	if task == nil {
		return nil, errors.New("update task status: task is nil")
	}
	next := task.Clone()
	next.ApplyStatus(status, time.Now().UTC())
	if id := strings.TrimSpace(userID); id != "" {
		next.LastWorkedOnByUserID = id
	}
	if err := s.SaveTask(ctx, next); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, task.ID)
}

// SaveTask writes every mutable column of task, guarded by its version. On
// success task.Version and task.UpdatedAt reflect the stored row.
func (s *Store) SaveTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("save task: task is nil")
	}
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET
            status = ?, priority = ?, workflow_stage_id = ?, assigned_to = ?, last_worked_on_by = ?,
            completed_at = ?, archived_at = ?, suspended_at = ?, deferred_at = ?, vetoed_at = ?,
            changes_required_at = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?`,
		task.Status,
		task.Priority,
		task.WorkflowStageID,
		nullableString(task.AssignedToUserID),
		nullableString(task.LastWorkedOnByUserID),
		nullableTime(task.CompletedAt),
		nullableTime(task.ArchivedAt),
		nullableTime(task.SuspendedAt),
		nullableTime(task.DeferredAt),
		nullableTime(task.VetoedAt),
		nullableTime(task.ChangesRequiredAt),
		formatTime(now),
		task.ID,
		task.Version,
	)
	if err != nil {
		return fmt.Errorf("save task %d: %w", task.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save task %d: %w", task.ID, err)
	}
	if affected == 0 {
		return s.classifyMissedWrite(ctx, task.ID, task.Version)
	}
	task.Version++
	task.UpdatedAt = now
	return nil
}

func (s *Store) classifyMissedWrite(ctx context.Context, id, expected int64) error {
	current, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("task %d at version %d, expected %d: %w", id, current.Version, expected, ErrVersionConflict)
}

// DeleteTask removes a task. Deleting a missing task returns ErrNotFound.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

// TaskStats returns a count of tasks grouped by status.
func (s *Store) TaskStats(ctx context.Context) (map[TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[TaskStatus]int)
	for rows.Next() {
		var status TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
