package transition

import (
	"fmt"

	"labelflow/internal/store"
)

// Decision is the outcome of a transition check. Reason explains a refusal.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

type rule struct {
	// managerOnly lists targets only a manager may pick.
	managerOnly []store.TaskStatus
	// always lists targets anyone may pick, unless requiresManager is set.
	always []store.TaskStatus
	// requiresManager restricts every target of this row to managers.
	requiresManager bool
	// managerAny lets a manager move to any other status.
	managerAny bool
}

var terminal = rule{}

var rules = map[store.TaskStatus]rule{
	store.StatusReadyForAnnotation: {
		managerOnly: []store.TaskStatus{store.StatusDeferred, store.StatusSuspended},
		always:      []store.TaskStatus{store.StatusInProgress},
	},
	store.StatusReadyForReview: {
		managerOnly: []store.TaskStatus{store.StatusDeferred, store.StatusSuspended},
		always:      []store.TaskStatus{store.StatusInProgress},
	},
	store.StatusReadyForCompletion: {
		always:          []store.TaskStatus{store.StatusInProgress, store.StatusDeferred, store.StatusSuspended},
		requiresManager: true,
	},
	store.StatusInProgress: {
		always: []store.TaskStatus{store.StatusCompleted, store.StatusSuspended, store.StatusDeferred},
	},
	store.StatusSuspended: {
		always: []store.TaskStatus{store.StatusInProgress, store.StatusDeferred},
	},
	store.StatusArchived: terminal,
	store.StatusDeferred: {
		managerAny: true,
	},
	store.StatusChangesRequired: {
		always: []store.TaskStatus{store.StatusInProgress, store.StatusSuspended, store.StatusDeferred},
	},
	store.StatusVetoed: {
		always: []store.TaskStatus{store.StatusInProgress, store.StatusSuspended, store.StatusDeferred},
	},
}

// completedRules splits COMPLETED by stage type: a completed task on the
// completion stage can only be archived or reopened by a manager, elsewhere
// it may be picked back up.
var completedRules = map[bool]rule{
	true: {
		managerOnly: []store.TaskStatus{store.StatusArchived, store.StatusReadyForAnnotation},
	},
	false: {
		always: []store.TaskStatus{store.StatusInProgress},
	},
}

// notStartedRule lets a freshly created task be queued at its stage's ready
// status or picked up directly. Parking it is a manager decision.
func notStartedRule(stageType store.StageType) rule {
	return rule{
		always:      []store.TaskStatus{ReadyStatus(stageType), store.StatusInProgress},
		managerOnly: []store.TaskStatus{store.StatusDeferred, store.StatusSuspended},
	}
}

// ReadyStatus is the queued status for work arriving at a stage of stageType.
func ReadyStatus(stageType store.StageType) store.TaskStatus {
	switch stageType {
	case store.StageRevision:
		return store.StatusReadyForReview
	case store.StageCompletion:
		return store.StatusReadyForCompletion
	default:
		return store.StatusReadyForAnnotation
	}
}

func ruleFor(from store.TaskStatus, stageType store.StageType) (rule, bool) {
	switch from {
	case store.StatusCompleted:
		return completedRules[stageType == store.StageCompletion], true
	case store.StatusNotStarted:
		return notStartedRule(stageType), true
	}
	r, ok := rules[from]
	return r, ok
}

func contains(list []store.TaskStatus, status store.TaskStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}
