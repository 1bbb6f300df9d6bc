package storage

import "time"

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means 5s
}

// AuditEntry records one domain event. Keep it compact and schema-stable.
type AuditEntry struct {
	At          time.Time
	RequestID   string
	ActorID     int64
	WorkspaceID int64
	Action      string
	Target      string
	Error       string
	MetaJSON    string
}
