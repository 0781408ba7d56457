package patch

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by Start while another run is still active.
var ErrRunInProgress = errors.New("patch run already in progress")

// ErrAborted is the failure of a run stopped through Abort.
var ErrAborted = errors.New("patch run aborted")

// BackendUnavailableError represents a probe the delivery backend could not
// answer for a group.
type BackendUnavailableError struct {
	Group string // Group label that was probed
	Err   error  // Underlying backend error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable for group %q: %v", e.Group, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// AggregationFailedError means the run could not determine a total size.
// No partial totals accompany it.
type AggregationFailedError struct {
	Err error // First probe failure, usually a *BackendUnavailableError
}

func (e *AggregationFailedError) Error() string {
	return fmt.Sprintf("failed to compute patch size: %v", e.Err)
}

func (e *AggregationFailedError) Unwrap() error {
	return e.Err
}

// DownloadFailedError represents a group transfer that broke.
type DownloadFailedError struct {
	Group string // Group label whose transfer failed
	Err   error  // Transport failure reported by the backend
}

func (e *DownloadFailedError) Error() string {
	return fmt.Sprintf("download of group %q failed: %v", e.Group, e.Err)
}

func (e *DownloadFailedError) Unwrap() error {
	return e.Err
}

// StateError is returned when an operation is not valid for the current run state.
type StateError struct {
	Operation string // The operation that was attempted (e.g., "confirm")
	Status    Status // The state the run was in
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while run is %s", e.Operation, e.Status)
}
