package patch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoConfirmer_StartsDownloadWithoutConfirm(t *testing.T) {
	backend := newFakeBackend(map[string]int64{"A": 300, "B": 0})
	auto := NewAutoConfirmer(context.Background())

	o := NewOrchestrator(backend, []string{"A", "B"}, WithObserver(auto))
	auto.Bind(o)

	snap, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingConfirmation, snap.Status, "Start reports the state it reached before observers ran")

	assert.Equal(t, StatusDownloading, o.Status())
	assert.Equal(t, []string{"A"}, backend.startedGroups())

	backend.handle("A").complete(300)

	snap, err = o.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, snap.Status)
}

func TestAutoConfirmer_IgnoresUpToDateRuns(t *testing.T) {
	backend := newFakeBackend(map[string]int64{"A": 0})
	auto := NewAutoConfirmer(context.Background())

	o := NewOrchestrator(backend, []string{"A"}, WithObserver(auto))
	auto.Bind(o)

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNoOpNeeded, o.Status())
	assert.Empty(t, backend.startedGroups())
}

func TestAutoConfirmer_Unbound(t *testing.T) {
	backend := newFakeBackend(map[string]int64{"A": 10})
	o := NewOrchestrator(backend, []string{"A"}, WithObserver(NewAutoConfirmer(context.Background())))

	_, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingConfirmation, o.Status())
}
