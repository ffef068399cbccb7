package pipeline

import (
	"labelflow/internal/services"
	"labelflow/internal/store"
)

// Result is the outcome of a pipeline run. A failed Result means nothing is
// guaranteed to have changed, except that an alert may have been filed.
type Result struct {
	Success bool
	// Task is the task the run was invoked on, reloaded after the run.
	Task *store.Task
	// SecondaryTask is the downstream task created or updated by the run.
	SecondaryTask *store.Task
	ErrorMessage  string
	Err           error
	Kind          services.ErrorKind
	// AlertIDs lists management alerts raised during the run.
	AlertIDs []string
}

func succeeded(task, secondary *store.Task) Result {
	return Result{Success: true, Task: task, SecondaryTask: secondary}
}

func failed(task *store.Task, err error) Result {
	details := services.Details(err)
	return Result{
		Task:         task,
		ErrorMessage: details.Message,
		Err:          err,
		Kind:         details.Kind,
	}
}
