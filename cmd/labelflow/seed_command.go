package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"labelflow/internal/store"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with sample data",
	}
	seedCmd.AddCommand(newSeedDemoCommand(ctx))
	return seedCmd
}

func newSeedDemoCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var userID string
	var assets int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Create an Annotate -> Review -> Complete workflow with in-progress tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if assets <= 0 {
				return fmt.Errorf("--assets must be positive")
			}
			return ctx.withStore(func(st *store.Store) error {
				demo, err := seedDemo(cmd.Context(), st, projectID, strings.TrimSpace(userID), assets)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Workflow %d for project %d\n", demo.workflowID, projectID)
				fmt.Fprintln(out, renderStages(demo.stages))
				for _, task := range demo.tasks {
					fmt.Fprintf(out, "Task %d for asset %d is %s (assigned to %s)\n", task.ID, task.AssetID, taskStatusLabel(task.Status), textCell(task.AssignedToUserID))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&projectID, "project", 1, "Project id to seed")
	cmd.Flags().StringVarP(&userID, "user", "u", "demo-user", "Assignee for the seeded tasks")
	cmd.Flags().IntVar(&assets, "assets", 3, "Number of assets to create")
	return cmd
}

type demoWorkflow struct {
	workflowID int64
	stages     []*store.WorkflowStage
	tasks      []*store.Task
}

func seedDemo(ctx context.Context, st *store.Store, projectID int64, userID string, assets int) (*demoWorkflow, error) {
	workflow, err := st.CreateWorkflow(ctx, projectID, "demo")
	if err != nil {
		return nil, err
	}
	annotation, err := st.CreateDataSource(ctx, projectID, "annotation", store.DataSourceAnnotation, "")
	if err != nil {
		return nil, err
	}
	review, err := st.CreateDataSource(ctx, projectID, "review", store.DataSourceRevision, "")
	if err != nil {
		return nil, err
	}
	completion, err := st.CreateDataSource(ctx, projectID, "completion", store.DataSourceCompletion, "")
	if err != nil {
		return nil, err
	}

	specs := []store.WorkflowStage{
		{Name: "Annotate", StageOrder: 1, StageType: store.StageAnnotation, IsInitialStage: true, TargetDataSourceID: &annotation.ID},
		{Name: "Review", StageOrder: 2, StageType: store.StageRevision, InputDataSourceID: &annotation.ID, TargetDataSourceID: &review.ID},
		{Name: "Complete", StageOrder: 3, StageType: store.StageCompletion, IsFinalStage: true, InputDataSourceID: &review.ID, TargetDataSourceID: &completion.ID},
	}
	demo := &demoWorkflow{workflowID: workflow.ID}
	for _, spec := range specs {
		spec.WorkflowID = workflow.ID
		stage, err := st.CreateStage(ctx, spec)
		if err != nil {
			return nil, err
		}
		demo.stages = append(demo.stages, stage)
	}
	for i := 1; i < len(demo.stages); i++ {
		if _, err := st.ConnectStages(ctx, demo.stages[i-1].ID, demo.stages[i].ID, ""); err != nil {
			return nil, err
		}
	}

	first := demo.stages[0]
	for i := 0; i < assets; i++ {
		asset, err := st.CreateAsset(ctx, projectID, annotation.ID, fmt.Sprintf("demo/asset-%03d", i+1))
		if err != nil {
			return nil, err
		}
		task, err := st.CreateTask(ctx, store.NewTask{
			AssetID:          asset.ID,
			WorkflowID:       workflow.ID,
			WorkflowStageID:  first.ID,
			Status:           store.StatusInProgress,
			AssignedToUserID: userID,
		})
		if err != nil {
			return nil, err
		}
		demo.tasks = append(demo.tasks, task)
	}
	return demo, nil
}
