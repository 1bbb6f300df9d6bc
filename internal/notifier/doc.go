// Package notifier delivers announcements, log lines and board messages.
//
// Announcements and log lines are resolved to a per-workspace chat target
// (stored as settings) and go through an async pipeline: a bounded queue, a
// worker pool, a shared token-bucket limiter and retry with jittered
// exponential backoff. Identical lines to the same target within the dedup
// window are sent once.
//
// Board and card messages are synchronous because callers need the resulting
// message reference. They share the same limiter.
//
// A workspace with no announcement target rejects Announce with
// domain.ErrNoTarget. A missing log target silently skips the line.
package notifier
