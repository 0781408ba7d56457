// Package patch drives a patch run: probe the pending size of every content
// group, wait for confirmation, download the non-empty groups concurrently and
// report aggregate progress until every byte has arrived.
package patch

// Status is the state of a patch run.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusProbing              Status = "probing"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusDownloading          Status = "downloading"
	StatusSucceeded            Status = "succeeded"
	StatusFailed               Status = "failed"
	StatusNoOpNeeded           Status = "no_op_needed"
)

// IsActive reports whether a run in this state still needs to be driven.
func (s Status) IsActive() bool {
	switch s {
	case StatusProbing, StatusAwaitingConfirmation, StatusDownloading:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a run in this state has ended.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusNoOpNeeded:
		return true
	default:
		return false
	}
}
