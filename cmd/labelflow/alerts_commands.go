package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"labelflow/internal/notifications"
	"labelflow/internal/store"
)

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Review management alerts",
	}
	alertsCmd.AddCommand(newAlertsListCommand(ctx))
	alertsCmd.AddCommand(newAlertsShowCommand(ctx))
	alertsCmd.AddCommand(newAlertsAckCommand(ctx))
	alertsCmd.AddCommand(newAlertsTestCommand(ctx))
	return alertsCmd
}

type alertJSON struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Severity       string            `json:"severity"`
	TaskID         int64             `json:"task_id,omitempty"`
	AssetID        int64             `json:"asset_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Error          string            `json:"error,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	NotifiedAt     *time.Time        `json:"notified_at,omitempty"`
	AcknowledgedAt *time.Time        `json:"acknowledged_at,omitempty"`
}

func alertView(alert *store.Alert) alertJSON {
	return alertJSON{
		ID:             alert.ID,
		Type:           alert.Type,
		Severity:       string(alert.Severity),
		TaskID:         alert.TaskID,
		AssetID:        alert.AssetID,
		UserID:         alert.UserID,
		Reason:         alert.Reason,
		Error:          alert.Error,
		Extra:          alert.Extra,
		CreatedAt:      alert.CreatedAt,
		NotifiedAt:     alert.NotifiedAt,
		AcknowledgedAt: alert.AcknowledgedAt,
	}
}

func newAlertsListCommand(ctx *commandContext) *cobra.Command {
	var filter store.AlertFilter
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				list, err := st.ListAlerts(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]alertJSON, 0, len(list))
					for _, alert := range list {
						views = append(views, alertView(alert))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No alerts")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, alert := range list {
					acked := "no"
					if alert.AcknowledgedAt != nil {
						acked = "yes"
					}
					rows = append(rows, []string{
						alert.ID,
						alert.Type,
						string(alert.Severity),
						idCell(alert.TaskID),
						timeCell(&alert.CreatedAt),
						acked,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Type", "Severity", "Task", "Created", "Acked"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.Type, "type", "", "Filter by alert type")
	cmd.Flags().Int64Var(&filter.TaskID, "task", 0, "Filter by task id")
	cmd.Flags().BoolVar(&filter.Unacknowledged, "open", false, "Only unacknowledged alerts")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum number of alerts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newAlertsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <alert-id>",
		Short: "Show an alert with its context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withStore(func(st *store.Store) error {
				alert, err := st.GetAlert(cmd.Context(), id)
				if err != nil {
					return err
				}
				if alert == nil {
					return fmt.Errorf("alert %s not found", id)
				}
				if asJSON {
					return writeJSON(cmd, alertView(alert))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Alert %s\n", alert.ID)
				fmt.Fprintf(out, "  Type:      %s\n", alert.Type)
				fmt.Fprintf(out, "  Severity:  %s\n", alert.Severity)
				fmt.Fprintf(out, "  Task:      %s\n", idCell(alert.TaskID))
				fmt.Fprintf(out, "  Asset:     %s\n", idCell(alert.AssetID))
				fmt.Fprintf(out, "  User:      %s\n", textCell(alert.UserID))
				fmt.Fprintf(out, "  Reason:    %s\n", textCell(alert.Reason))
				fmt.Fprintf(out, "  Error:     %s\n", textCell(alert.Error))
				fmt.Fprintf(out, "  Created:   %s\n", timeCell(&alert.CreatedAt))
				fmt.Fprintf(out, "  Notified:  %s\n", timeCell(alert.NotifiedAt))
				fmt.Fprintf(out, "  Acked:     %s\n", timeCell(alert.AcknowledgedAt))
				if len(alert.Extra) > 0 {
					keys := make([]string, 0, len(alert.Extra))
					for key := range alert.Extra {
						keys = append(keys, key)
					}
					sort.Strings(keys)
					fmt.Fprintln(out, "  Context:")
					for _, key := range keys {
						fmt.Fprintf(out, "    %s: %s\n", key, alert.Extra[key])
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newAlertsAckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <alert-id>...",
		Short: "Acknowledge alerts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				now := time.Now().UTC()
				var errs []error
				for _, id := range args {
					if err := st.AcknowledgeAlert(cmd.Context(), strings.TrimSpace(id), now); err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %s\n", id)
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newAlertsTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification to the configured ntfy topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Alerts.NtfyTopic) == "" {
				fmt.Fprintln(out, "Notification not sent: ntfy_topic is not configured")
				return nil
			}
			if err := notifications.NewService(cfg).Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
}
