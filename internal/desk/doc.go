// Package desk runs every chat-initiated operation end to end: capability
// check, mutation through the claim engine or category gate, in-place board
// refresh, a line to the workspace log and an event on the bus.
//
// Board refresh and log delivery are side effects. Their failures are logged
// and never fail the operation that already committed.
package desk
