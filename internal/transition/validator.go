package transition

import (
	"labelflow/internal/store"
)

// IsAllowed reports whether a task on a stage of stageType may move from one
// status to another. Every transition on a COMPLETION stage requires a
// manager, on top of the per-status rules.
func IsAllowed(from, to store.TaskStatus, stageType store.StageType, isManager bool) Decision {
	if from == to {
		return deny("task is already %s", to)
	}
	if stageType == store.StageCompletion && !isManager {
		return deny("transitions on a completion stage require a manager")
	}

	r, ok := ruleFor(from, stageType)
	if !ok {
		return deny("no transitions are defined from %s", from)
	}

	if r.managerAny {
		if isManager {
			return allow()
		}
		return deny("only a manager can move a task out of %s", from)
	}
	if contains(r.always, to) {
		if r.requiresManager && !isManager {
			return deny("only a manager can move a task out of %s", from)
		}
		return allow()
	}
	if contains(r.managerOnly, to) {
		if isManager {
			return allow()
		}
		return deny("only a manager can move a task from %s to %s", from, to)
	}
	if len(r.always) == 0 && len(r.managerOnly) == 0 {
		return deny("%s is terminal", from)
	}
	return deny("cannot move a task from %s to %s", from, to)
}

// ShouldMoveAsset reports whether reaching toStatus on a stage should move
// the asset to the next stage's data source. Only completion moves assets,
// and only out of annotation and revision stages.
func ShouldMoveAsset(toStatus store.TaskStatus, stageType store.StageType, isFinalStage bool) bool {
	if toStatus != store.StatusCompleted {
		return false
	}
	switch stageType {
	case store.StageAnnotation, store.StageRevision:
		return true
	default:
		// Completion stages hold the asset in place, final or not.
		return false
	}
}
