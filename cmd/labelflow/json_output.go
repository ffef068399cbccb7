package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"labelflow/internal/pipeline"
	"labelflow/internal/store"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type taskJSON struct {
	ID                int64      `json:"id"`
	Status            string     `json:"status"`
	Priority          int        `json:"priority"`
	AssetID           int64      `json:"asset_id"`
	WorkflowID        int64      `json:"workflow_id"`
	StageID           int64      `json:"stage_id"`
	AssignedTo        string     `json:"assigned_to,omitempty"`
	LastWorkedOnBy    string     `json:"last_worked_on_by,omitempty"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	VetoedAt          *time.Time `json:"vetoed_at,omitempty"`
	ChangesRequiredAt *time.Time `json:"changes_required_at,omitempty"`
}

func taskView(task *store.Task) *taskJSON {
	if task == nil {
		return nil
	}
	return &taskJSON{
		ID:                task.ID,
		Status:            string(task.Status),
		Priority:          task.Priority,
		AssetID:           task.AssetID,
		WorkflowID:        task.WorkflowID,
		StageID:           task.WorkflowStageID,
		AssignedTo:        task.AssignedToUserID,
		LastWorkedOnBy:    task.LastWorkedOnByUserID,
		Version:           task.Version,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
		CompletedAt:       task.CompletedAt,
		VetoedAt:          task.VetoedAt,
		ChangesRequiredAt: task.ChangesRequiredAt,
	}
}

type resultJSON struct {
	Success       bool      `json:"success"`
	Task          *taskJSON `json:"task,omitempty"`
	SecondaryTask *taskJSON `json:"secondary_task,omitempty"`
	Error         string    `json:"error,omitempty"`
	Kind          string    `json:"kind,omitempty"`
	AlertIDs      []string  `json:"alert_ids,omitempty"`
}

func resultView(res pipeline.Result) resultJSON {
	return resultJSON{
		Success:       res.Success,
		Task:          taskView(res.Task),
		SecondaryTask: taskView(res.SecondaryTask),
		Error:         res.ErrorMessage,
		Kind:          string(res.Kind),
		AlertIDs:      res.AlertIDs,
	}
}
