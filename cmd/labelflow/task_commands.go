package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"labelflow/internal/pipeline"
	"labelflow/internal/store"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Drive tasks through the workflow",
	}
	taskCmd.AddCommand(newTaskCompleteCommand(ctx))
	taskCmd.AddCommand(newTaskVetoCommand(ctx))
	taskCmd.AddCommand(newTaskCanCommand(ctx, "can-complete", "Report whether a user may complete a task"))
	taskCmd.AddCommand(newTaskCanCommand(ctx, "can-veto", "Report whether a user may veto a task"))
	taskCmd.AddCommand(newTaskTransitionCommand(ctx))
	taskCmd.AddCommand(newTaskCreateCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))
	taskCmd.AddCommand(newTaskListCommand(ctx))
	taskCmd.AddCommand(newTaskIntegrityCommand(ctx))
	return taskCmd
}

func newTaskCompleteCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Complete a task and hand its asset to the next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *pipeline.Engine, _ *store.Store) error {
				res := engine.CompleteTask(cmd.Context(), id, userID)
				return printResult(cmd, "complete", res, asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTaskVetoCommand(ctx *commandContext) *cobra.Command {
	var userID, reason string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "veto <task-id>",
		Short: "Veto a review task and send its asset back to annotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *pipeline.Engine, _ *store.Store) error {
				res := engine.VetoTask(cmd.Context(), id, userID, reason)
				return printResult(cmd, "veto", res, asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the work is being sent back")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTaskCanCommand(ctx *commandContext, use, short string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *pipeline.Engine, _ *store.Store) error {
				var allowed bool
				if use == "can-veto" {
					allowed = engine.CanVetoTask(cmd.Context(), id, userID)
				} else {
					allowed = engine.CanCompleteTask(cmd.Context(), id, userID)
				}
				fmt.Fprintln(cmd.OutOrStdout(), yesNo(allowed))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTaskTransitionCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var manager, asJSON bool
	cmd := &cobra.Command{
		Use:   "transition <task-id> <status>",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			status, ok := store.ParseStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			return ctx.withEngine(func(engine *pipeline.Engine, _ *store.Store) error {
				res := engine.TransitionTask(cmd.Context(), id, userID, status, manager)
				return printResult(cmd, "transition", res, asJSON)
			})
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Acting user id")
	cmd.Flags().BoolVar(&manager, "manager", false, "Act with manager privileges")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTaskCreateCommand(ctx *commandContext) *cobra.Command {
	var assetID, stageID int64
	var statusValue, assignee string
	var priority int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task for an asset at a stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, ok := store.ParseStatus(statusValue)
			if !ok {
				return fmt.Errorf("unknown status %q", statusValue)
			}
			return ctx.withStore(func(st *store.Store) error {
				stage, err := st.GetStage(cmd.Context(), stageID)
				if err != nil {
					return err
				}
				if stage == nil {
					return fmt.Errorf("stage %d not found", stageID)
				}
				asset, err := st.GetAsset(cmd.Context(), assetID)
				if err != nil {
					return err
				}
				if asset == nil {
					return fmt.Errorf("asset %d not found", assetID)
				}
				task, err := st.CreateTask(cmd.Context(), store.NewTask{
					AssetID:          asset.ID,
					WorkflowID:       stage.WorkflowID,
					WorkflowStageID:  stage.ID,
					Status:           status,
					Priority:         priority,
					AssignedToUserID: strings.TrimSpace(assignee),
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, taskView(task))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %d (%s) at stage %s\n", task.ID, taskStatusLabel(task.Status), stage.Name)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&assetID, "asset", 0, "Asset id")
	cmd.Flags().Int64Var(&stageID, "stage", 0, "Workflow stage id")
	cmd.Flags().StringVar(&statusValue, "status", string(store.StatusNotStarted), "Initial status")
	cmd.Flags().StringVar(&assignee, "assignee", "", "Assigned user id")
	cmd.Flags().IntVar(&priority, "priority", 0, "Task priority")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				task, err := st.GetTask(cmd.Context(), id)
				if err != nil {
					return err
				}
				if task == nil {
					return fmt.Errorf("task %d not found", id)
				}
				if asJSON {
					return writeJSON(cmd, taskView(task))
				}
				stageName := "-"
				if stage, err := st.GetStage(cmd.Context(), task.WorkflowStageID); err == nil && stage != nil {
					stageName = stage.Name
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Task %d\n", task.ID)
				fmt.Fprintf(out, "  Status:          %s\n", colorStatus(task.Status, colorize))
				fmt.Fprintf(out, "  Stage:           %s (%d)\n", stageName, task.WorkflowStageID)
				fmt.Fprintf(out, "  Asset:           %d\n", task.AssetID)
				fmt.Fprintf(out, "  Assigned to:     %s\n", textCell(task.AssignedToUserID))
				fmt.Fprintf(out, "  Last worked by:  %s\n", textCell(task.LastWorkedOnByUserID))
				fmt.Fprintf(out, "  Priority:        %d\n", task.Priority)
				fmt.Fprintf(out, "  Version:         %d\n", task.Version)
				fmt.Fprintf(out, "  Updated:         %s\n", timeCell(&task.UpdatedAt))
				fmt.Fprintf(out, "  Completed:       %s\n", timeCell(task.CompletedAt))
				fmt.Fprintf(out, "  Vetoed:          %s\n", timeCell(task.VetoedAt))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var filter store.TaskFilter
	var statuses []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, value := range statuses {
				status, ok := store.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(st *store.Store) error {
				tasks, err := st.ListTasks(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					views := make([]*taskJSON, 0, len(tasks))
					for _, task := range tasks {
						views = append(views, taskView(task))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(tasks) == 0 {
					fmt.Fprintln(out, "No tasks found")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						idCell(task.ID),
						colorStatus(task.Status, colorize),
						idCell(task.WorkflowStageID),
						idCell(task.AssetID),
						textCell(task.AssignedToUserID),
						strconv.Itoa(task.Priority),
						timeCell(&task.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Stage", "Asset", "Assignee", "Priority", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&filter.WorkflowID, "workflow", 0, "Filter by workflow id")
	cmd.Flags().Int64Var(&filter.StageID, "stage", 0, "Filter by stage id")
	cmd.Flags().Int64Var(&filter.AssetID, "asset", 0, "Filter by asset id")
	cmd.Flags().StringVar(&filter.AssigneeID, "assignee", "", "Filter by assigned user")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTaskIntegrityCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity <asset-id>",
		Short: "Check that at most one task of an asset is in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetID, err := parseID("asset", args[0])
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *pipeline.Engine, _ *store.Store) error {
				ok, err := engine.CheckIntegrity(cmd.Context(), assetID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Asset %d", assetID), statusError, "more than one task in progress", shouldColorize(out)))
					return errors.New("integrity check failed")
				}
				fmt.Fprintln(out, renderStatusLine(fmt.Sprintf("Asset %d", assetID), statusOK, "", shouldColorize(out)))
				return nil
			})
		},
	}
}

func printResult(cmd *cobra.Command, operation string, res pipeline.Result, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd, resultView(res)); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		colorize := shouldColorize(out)
		if res.Success && res.Task != nil {
			fmt.Fprintf(out, "Task %d is now %s\n", res.Task.ID, colorStatus(res.Task.Status, colorize))
			if res.SecondaryTask != nil {
				fmt.Fprintf(out, "Task %d at stage %d is now %s\n", res.SecondaryTask.ID, res.SecondaryTask.WorkflowStageID, colorStatus(res.SecondaryTask.Status, colorize))
			}
		}
		for _, id := range res.AlertIDs {
			fmt.Fprintf(out, "Alert raised: %s\n", id)
		}
	}
	if res.Success {
		return nil
	}
	return fmt.Errorf("%s failed (%s): %s", operation, res.Kind, res.ErrorMessage)
}

func parseID(kind, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, value)
	}
	return id, nil
}
