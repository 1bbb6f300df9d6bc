// Package scheduler registers named cron and interval schedules and runs
// their jobs with a per-run timeout. A schedule whose previous run is still
// in flight skips the tick; a panicking job is recovered and logged.
package scheduler
