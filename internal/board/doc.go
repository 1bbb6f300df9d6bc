// Package board renders the paginated list of open jobs and keeps the single
// live board message of each workspace in sync with the store.
package board
