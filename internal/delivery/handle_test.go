package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransferHandleLifecycle(t *testing.T) {
	h := NewTransferHandle(context.Background(), 100, nil)

	assert.False(t, h.IsDone())
	assert.Equal(t, int64(100), h.TotalBytes())

	h.Add(40)
	h.Add(20)
	assert.Equal(t, int64(60), h.DownloadedBytes())

	h.Finish(nil)
	h.Finish(errors.New("late failure"))

	assert.True(t, h.IsDone())
	assert.NoError(t, h.Err())
}

func TestTransferHandleReleaseAbortsRunningTransfer(t *testing.T) {
	released := 0
	h := NewTransferHandle(context.Background(), 10, func() { released++ })

	h.Release()
	h.Release()

	assert.Equal(t, 1, released)
	assert.ErrorIs(t, h.Context().Err(), context.Canceled)
	assert.True(t, h.IsDone())
	assert.ErrorIs(t, h.Err(), ErrReleased)
}

func TestTransferHandleReleaseAfterSuccessKeepsResult(t *testing.T) {
	h := NewTransferHandle(context.Background(), 10, nil)
	h.Add(10)
	h.Finish(nil)

	h.Release()

	assert.NoError(t, h.Err())
}

func TestTransferHandleOutlivesParentContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	h := NewTransferHandle(parent, 10, nil)

	cancel()

	assert.NoError(t, h.Context().Err())
}
