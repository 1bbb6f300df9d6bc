package eventbus

// Event types published by the desk, board and rotation services.
const (
	JobCreated   = "job.created"
	JobClaimed   = "job.claimed"
	JobUnclaimed = "job.unclaimed"
	JobClosed    = "job.closed"
	JobReopened  = "job.reopened"
	JobDeleted   = "job.deleted"

	BoardInitialized = "board.initialized"
	BoardSynced      = "board.synced"

	CategoryAdded   = "category.added"
	CategoryRemoved = "category.removed"

	RotationReminded = "rotation.reminded"
	RotationAdvanced = "rotation.advanced"

	WarningAdded   = "warning.added"
	WarningRemoved = "warning.removed"

	TaskFinished = "task.finished"
)

// Change is the payload of every workspace-scoped event.
type Change struct {
	RequestID   string
	WorkspaceID int64
	ActorID     int64
	Target      string
	Detail      string
}

// TaskResult is the payload of TaskFinished.
type TaskResult struct {
	Name    string
	Err     string
	TookMS  int64
	Skipped bool
}
