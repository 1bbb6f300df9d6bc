package domain

import (
	"time"

	"jobdesk/internal/transport"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusClaimed Status = "claimed"
	StatusClosed  Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClaimed, StatusClosed:
		return true
	}
	return false
}

// Job is one unit of work posted to a workspace. OpenToAll is captured at
// creation and never recomputed.
type Job struct {
	WorkspaceID int64
	ID          int64
	Title       string
	Description string
	Category    string
	OpenToAll   bool
	Status      Status
	ClaimedBy   *int64
	CreatedBy   int64
	CreatedAt   time.Time
	BoardRef    *transport.MessageRef
}

// NewJob is the creation payload. OpenToAll has already been decided.
type NewJob struct {
	Title       string
	Description string
	Category    string
	OpenToAll   bool
	CreatedBy   int64
}

// State is the (status, claimed_by) pair every transition compares and swaps.
type State struct {
	Status    Status
	ClaimedBy *int64
}

func (j Job) State() State { return State{Status: j.Status, ClaimedBy: j.ClaimedBy} }

// ClaimedByID returns the claimer or 0.
func (j Job) ClaimedByID() int64 {
	if j.ClaimedBy == nil {
		return 0
	}
	return *j.ClaimedBy
}

// BoardView is the single live board message of a workspace.
type BoardView struct {
	WorkspaceID int64
	Ref         transport.MessageRef
	Page        int
}

type RosterEntry struct {
	ID          int64
	WorkspaceID int64
	UserID      int64
	AddedAt     time.Time
}

type RotationState struct {
	WorkspaceID  int64
	CurrentIndex int64
	LastRotateAt time.Time
}

type Warning struct {
	ID          int64
	WorkspaceID int64
	UserID      int64
	ModeratorID int64
	Reason      string
	CreatedAt   time.Time
}

// Role is a named rank. Higher rank satisfies every lower requirement.
type Role struct {
	WorkspaceID int64
	Name        string
	Rank        int
}

// Settings keys.
const (
	SettingAnnounceChat   = "announce_chat"
	SettingAnnounceThread = "announce_thread"
	SettingLogChat        = "log_chat"
	SettingLogThread      = "log_thread"
	SettingMinClaimRole   = "min_claim_role"
	SettingManagerRole    = "manager_role"
)

func Int64Ptr(v int64) *int64 { return &v }
