// Package delivery defines the content delivery backend the patch
// orchestrator talks to, plus the pieces shared by its adapters.
package delivery

import (
	"context"
)

// Backend resolves pending sizes for content groups and moves their bytes.
type Backend interface {
	// RemoteSize returns the bytes still to be fetched for group.
	RemoteSize(ctx context.Context, group string) (int64, error)
	// StartTransfer begins fetching group and returns immediately.
	StartTransfer(ctx context.Context, group string) (Handle, error)
}

// Handle observes one in-flight group transfer.
type Handle interface {
	IsDone() bool
	DownloadedBytes() int64
	TotalBytes() int64
	// Err is non-nil once the transfer finished with a failure.
	Err() error
	// Release frees whatever the backend holds for the transfer and aborts
	// it if it is still running. Safe to call more than once.
	Release()
}
