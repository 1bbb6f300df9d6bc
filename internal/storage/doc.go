// Package storage is the SQLite persistence layer.
//
// Every mutation the claim state machine relies on is a single conditional
// UPDATE (compare-and-swap on status and claimed_by) so that concurrent
// writers in any process sharing the database file serialize correctly.
package storage
