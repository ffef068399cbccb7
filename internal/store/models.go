package store

import (
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusNotStarted         TaskStatus = "NOT_STARTED"
	StatusReadyForAnnotation TaskStatus = "READY_FOR_ANNOTATION"
	StatusReadyForReview     TaskStatus = "READY_FOR_REVIEW"
	StatusReadyForCompletion TaskStatus = "READY_FOR_COMPLETION"
	StatusInProgress         TaskStatus = "IN_PROGRESS"
	StatusCompleted          TaskStatus = "COMPLETED"
	StatusSuspended          TaskStatus = "SUSPENDED"
	StatusDeferred           TaskStatus = "DEFERRED"
	StatusChangesRequired    TaskStatus = "CHANGES_REQUIRED"
	StatusVetoed             TaskStatus = "VETOED"
	StatusArchived           TaskStatus = "ARCHIVED"
)

var allStatuses = []TaskStatus{
	StatusNotStarted,
	StatusReadyForAnnotation,
	StatusReadyForReview,
	StatusReadyForCompletion,
	StatusInProgress,
	StatusCompleted,
	StatusSuspended,
	StatusDeferred,
	StatusChangesRequired,
	StatusVetoed,
	StatusArchived,
}

var statusSet = func() map[TaskStatus]struct{} {
	set := make(map[TaskStatus]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known task status in lifecycle order.
func AllStatuses() []TaskStatus {
	out := make([]TaskStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts user input into a TaskStatus.
func ParseStatus(value string) (TaskStatus, bool) {
	normalized := TaskStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", "_")))
	if _, ok := statusSet[normalized]; ok {
		return normalized, true
	}
	return "", false
}

// StageType classifies a workflow stage.
type StageType string

const (
	StageAnnotation StageType = "ANNOTATION"
	StageRevision   StageType = "REVISION"
	StageCompletion StageType = "COMPLETION"
)

// ParseStageType converts user input into a StageType.
func ParseStageType(value string) (StageType, bool) {
	switch StageType(strings.ToUpper(strings.TrimSpace(value))) {
	case StageAnnotation:
		return StageAnnotation, true
	case StageRevision:
		return StageRevision, true
	case StageCompletion:
		return StageCompletion, true
	}
	return "", false
}

// DataSourceKind classifies what a data source holds.
type DataSourceKind string

const (
	DataSourceAnnotation DataSourceKind = "ANNOTATION"
	DataSourceRevision   DataSourceKind = "REVISION"
	DataSourceCompletion DataSourceKind = "COMPLETION"
	DataSourceImport     DataSourceKind = "IMPORT"
)

// Task is one unit of work bound to an asset at a specific workflow stage.
type Task struct {
	ID                   int64
	Status               TaskStatus
	Priority             int
	AssetID              int64
	WorkflowID           int64
	WorkflowStageID      int64
	AssignedToUserID     string
	LastWorkedOnByUserID string
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
	ArchivedAt           *time.Time
	SuspendedAt          *time.Time
	DeferredAt           *time.Time
	VetoedAt             *time.Time
	ChangesRequiredAt    *time.Time
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	clone.CompletedAt = cloneTime(t.CompletedAt)
	clone.ArchivedAt = cloneTime(t.ArchivedAt)
	clone.SuspendedAt = cloneTime(t.SuspendedAt)
	clone.DeferredAt = cloneTime(t.DeferredAt)
	clone.VetoedAt = cloneTime(t.VetoedAt)
	clone.ChangesRequiredAt = cloneTime(t.ChangesRequiredAt)
	return &clone
}

// IsAssignedTo reports whether userID is the task's assignee.
func (t *Task) IsAssignedTo(userID string) bool {
	if t == nil || t.AssignedToUserID == "" {
		return false
	}
	return t.AssignedToUserID == strings.TrimSpace(userID)
}

// ApplyStatus sets the status and stamps the timestamp tracking it. Other
// timestamps are left untouched.
func (t *Task) ApplyStatus(status TaskStatus, now time.Time) {
	t.Status = status
	stamp := now
	switch status {
	case StatusCompleted:
		t.CompletedAt = &stamp
	case StatusArchived:
		t.ArchivedAt = &stamp
	case StatusSuspended:
		t.SuspendedAt = &stamp
	case StatusDeferred:
		t.DeferredAt = &stamp
	case StatusVetoed:
		t.VetoedAt = &stamp
	case StatusChangesRequired:
		t.ChangesRequiredAt = &stamp
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

// NewTask describes a task to insert.
type NewTask struct {
	AssetID          int64
	WorkflowID       int64
	WorkflowStageID  int64
	Status           TaskStatus
	Priority         int
	AssignedToUserID string
}

// TaskFilter narrows task listings. Zero values match everything.
type TaskFilter struct {
	WorkflowID int64
	StageID    int64
	AssetID    int64
	Statuses   []TaskStatus
	AssigneeID string
	Limit      int
}

// Asset is a content item that lives in exactly one data source at a time.
type Asset struct {
	ID           int64
	ProjectID    int64
	DataSourceID int64
	Status       string
	ObjectKey    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DataSource is a container that assets are staged into.
type DataSource struct {
	ID        int64
	ProjectID int64
	Name      string
	Kind      DataSourceKind
	Bucket    string
	CreatedAt time.Time
}

// Workflow groups the stages of a project's process.
type Workflow struct {
	ID        int64
	ProjectID int64
	Name      string
	CreatedAt time.Time
}

// WorkflowStage is a node in a workflow's directed stage graph.
type WorkflowStage struct {
	ID                 int64
	WorkflowID         int64
	Name               string
	StageOrder         int
	StageType          StageType
	IsInitialStage     bool
	IsFinalStage       bool
	InputDataSourceID  *int64
	TargetDataSourceID *int64
}

// Clone returns a deep copy of the stage.
func (s *WorkflowStage) Clone() *WorkflowStage {
	if s == nil {
		return nil
	}
	clone := *s
	clone.InputDataSourceID = cloneID(s.InputDataSourceID)
	clone.TargetDataSourceID = cloneID(s.TargetDataSourceID)
	return &clone
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// StageConnection is a directed edge between two stages of one workflow.
// An empty Condition marks an unconditional edge.
type StageConnection struct {
	ID          int64
	FromStageID int64
	ToStageID   int64
	Condition   string
}

// Unconditional reports whether the edge carries no condition label.
func (c *StageConnection) Unconditional() bool {
	return c != nil && strings.TrimSpace(c.Condition) == ""
}

// AlertSeverity ranks management alerts.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a management escalation record.
type Alert struct {
	ID             string
	Type           string
	Severity       AlertSeverity
	TaskID         int64
	AssetID        int64
	UserID         string
	Reason         string
	Error          string
	Extra          map[string]string
	CreatedAt      time.Time
	NotifiedAt     *time.Time
	AcknowledgedAt *time.Time
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Type           string
	TaskID         int64
	Unacknowledged bool
	Limit          int
}

// DatabaseHealth captures diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}
