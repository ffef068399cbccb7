package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"labelflow/internal/stagegraph"
	"labelflow/internal/store"
)

func newWorkflowCommand(ctx *commandContext) *cobra.Command {
	workflowCmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflow stage graphs",
	}
	workflowCmd.AddCommand(newWorkflowStagesCommand(ctx))
	workflowCmd.AddCommand(newWorkflowNextCommand(ctx))
	workflowCmd.AddCommand(newWorkflowPredecessorsCommand(ctx))
	return workflowCmd
}

func newWorkflowStagesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stages <workflow-id>",
		Short: "List a workflow's stages in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := parseID("workflow", args[0])
			if err != nil {
				return err
			}
			return ctx.withResolver(func(resolver *stagegraph.Resolver, _ *store.Store) error {
				stages, err := resolver.Stages(cmd.Context(), workflowID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(stages) == 0 {
					fmt.Fprintf(out, "Workflow %d has no stages\n", workflowID)
					return nil
				}
				fmt.Fprintln(out, renderStages(stages))
				return nil
			})
		},
	}
}

func newWorkflowNextCommand(ctx *commandContext) *cobra.Command {
	var condition string
	cmd := &cobra.Command{
		Use:   "next <stage-id>",
		Short: "Show the stage a completed task moves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageID, err := parseID("stage", args[0])
			if err != nil {
				return err
			}
			return ctx.withResolver(func(resolver *stagegraph.Resolver, _ *store.Store) error {
				next, err := resolver.NextStageFor(cmd.Context(), stageID, condition)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if next == nil {
					fmt.Fprintf(out, "Stage %d is terminal\n", stageID)
					return nil
				}
				fmt.Fprintf(out, "%s (%d, %s)\n", next.Name, next.ID, next.StageType)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&condition, "condition", "", "Follow the edge with this condition label")
	return cmd
}

func newWorkflowPredecessorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "predecessors <workflow-id>",
		Short: "List the stages that lead into the completion stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, err := parseID("workflow", args[0])
			if err != nil {
				return err
			}
			return ctx.withResolver(func(resolver *stagegraph.Resolver, _ *store.Store) error {
				stages, err := resolver.CompletionPredecessors(cmd.Context(), workflowID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(stages) == 0 {
					fmt.Fprintln(out, "No stages lead into a completion stage")
					return nil
				}
				fmt.Fprintln(out, renderStages(stages))
				return nil
			})
		},
	}
}

func renderStages(stages []*store.WorkflowStage) string {
	rows := make([][]string, 0, len(stages))
	for _, stage := range stages {
		var flags string
		switch {
		case stage.IsInitialStage && stage.IsFinalStage:
			flags = "initial, final"
		case stage.IsInitialStage:
			flags = "initial"
		case stage.IsFinalStage:
			flags = "final"
		}
		rows = append(rows, []string{
			idCell(stage.ID),
			strconv.Itoa(stage.StageOrder),
			stage.Name,
			titleCaser.String(string(stage.StageType)),
			sourceCell(stage.InputDataSourceID),
			sourceCell(stage.TargetDataSourceID),
			textCell(flags),
		})
	}
	return renderTable(
		[]string{"ID", "Order", "Name", "Type", "Input", "Target", "Flags"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func sourceCell(id *int64) string {
	if id == nil {
		return "-"
	}
	return idCell(*id)
}
