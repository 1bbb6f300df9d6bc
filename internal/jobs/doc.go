// Package jobs implements the job claim state machine.
//
//	open    --Claim-->   claimed
//	claimed --Unclaim--> open
//	open|claimed --Close--> closed
//	closed  --Reopen-->  open
//	any     --Delete-->  (gone)
//
// Each transition reads the job, decides, then commits with a
// compare-and-swap on (status, claimed_by). A lost swap re-reads and decides
// again, so callers always get the outcome of the state they raced against.
package jobs
