package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const alertColumns = "id, type, severity, task_id, asset_id, user_id, reason, error, extra_json, created_at, notified_at, acknowledged_at"

func scanAlert(scanner rowScanner) (*Alert, error) {
	var (
		alert      Alert
		severity   string
		taskID     sql.NullInt64
		assetID    sql.NullInt64
		userID     sql.NullString
		reason     sql.NullString
		errText    sql.NullString
		extraJSON  sql.NullString
		createdRaw string
		notified   sql.NullString
		acked      sql.NullString
	)
	if err := scanner.Scan(
		&alert.ID,
		&alert.Type,
		&severity,
		&taskID,
		&assetID,
		&userID,
		&reason,
		&errText,
		&extraJSON,
		&createdRaw,
		&notified,
		&acked,
	); err != nil {
		return nil, err
	}
	alert.Severity = AlertSeverity(severity)
	alert.TaskID = taskID.Int64
	alert.AssetID = assetID.Int64
	alert.UserID = userID.String
	alert.Reason = reason.String
	alert.Error = errText.String
	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &alert.Extra); err != nil {
			return nil, fmt.Errorf("decode alert extra: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		alert.CreatedAt = created
	}
	alert.NotifiedAt = parseNullTime(notified)
	alert.AcknowledgedAt = parseNullTime(acked)
	return &alert, nil
}

// InsertAlert persists an alert. The alert must carry an id and a type.
func (s *Store) InsertAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return errors.New("insert alert: alert is nil")
	}
	if strings.TrimSpace(alert.ID) == "" || strings.TrimSpace(alert.Type) == "" {
		return errors.New("insert alert: id and type are required")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	var extra any
	if len(alert.Extra) > 0 {
		encoded, err := json.Marshal(alert.Extra)
		if err != nil {
			return fmt.Errorf("encode alert extra: %w", err)
		}
		extra = string(encoded)
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Type,
		alert.Severity,
		nullableID(alert.TaskID),
		nullableID(alert.AssetID),
		nullableString(alert.UserID),
		nullableString(alert.Reason),
		nullableString(alert.Error),
		extra,
		formatTime(alert.CreatedAt),
		nullableTime(alert.NotifiedAt),
		nullableTime(alert.AcknowledgedAt),
	); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetAlert fetches an alert by id. A missing row yields (nil, nil).
func (s *Store) GetAlert(ctx context.Context, id string) (*Alert, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return alert, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error) {
	var (
		clauses []string
		args    []any
	)
	if t := strings.TrimSpace(filter.Type); t != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, t)
	}
	if filter.TaskID != 0 {
		clauses = append(clauses, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.Unacknowledged {
		clauses = append(clauses, "acknowledged_at IS NULL")
	}
	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkAlertNotified records when an alert was escalated.
func (s *Store) MarkAlertNotified(ctx context.Context, id string, at time.Time) error {
	return s.stampAlert(ctx, "notified_at", id, at)
}

// AcknowledgeAlert records that an operator handled the alert.
func (s *Store) AcknowledgeAlert(ctx context.Context, id string, at time.Time) error {
	return s.stampAlert(ctx, "acknowledged_at", id, at)
}

func (s *Store) stampAlert(ctx context.Context, column, id string, at time.Time) error {
	res, err := s.execWithRetry(ctx, `UPDATE alerts SET `+column+` = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update alert %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}
