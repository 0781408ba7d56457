package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/italolelis/asset_patcher/internal/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantBackend completes every transfer as soon as it starts.
type instantBackend struct {
	sizes map[string]int64
}

func (b *instantBackend) RemoteSize(_ context.Context, group string) (int64, error) {
	return b.sizes[group], nil
}

func (b *instantBackend) StartTransfer(ctx context.Context, group string) (delivery.Handle, error) {
	h := delivery.NewTransferHandle(ctx, b.sizes[group], nil)
	h.Add(b.sizes[group])
	h.Finish(nil)

	return h, nil
}

func TestCheckReportsPendingGroups(t *testing.T) {
	o := patch.NewOrchestrator(&instantBackend{sizes: map[string]int64{"prefab": 2048, "sprite": 0}}, []string{"prefab", "sprite"})

	var out bytes.Buffer
	require.NoError(t, check(context.Background(), o, &out))

	assert.Contains(t, out.String(), "prefab")
	assert.NotContains(t, out.String(), "sprite")
	assert.Contains(t, out.String(), "total 2 KB pending")
}

func TestCheckUpToDate(t *testing.T) {
	o := patch.NewOrchestrator(&instantBackend{sizes: map[string]int64{}}, []string{"prefab"})

	var out bytes.Buffer
	require.NoError(t, check(context.Background(), o, &out))
	assert.Equal(t, "content is up to date\n", out.String())
}

func TestDownloadDeclined(t *testing.T) {
	o := patch.NewOrchestrator(&instantBackend{sizes: map[string]int64{"prefab": 100}}, []string{"prefab"})

	var out bytes.Buffer
	require.NoError(t, download(context.Background(), o, time.Millisecond, false, strings.NewReader("n\n"), &out))

	assert.Contains(t, out.String(), "nothing downloaded")
	assert.Equal(t, patch.StatusFailed, o.Status())
}

func TestDownloadConfirmed(t *testing.T) {
	o := patch.NewOrchestrator(&instantBackend{sizes: map[string]int64{"prefab": 100, "sprite": 300}}, []string{"prefab", "sprite"})

	var out bytes.Buffer
	require.NoError(t, download(context.Background(), o, time.Millisecond, false, strings.NewReader("yes\n"), &out))

	assert.Contains(t, out.String(), "100 %")
	assert.Equal(t, patch.StatusSucceeded, o.Status())
}

func TestConfirmPrompt(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"\n":    false,
		"no\n":  false,
		"":      false,
	}

	for in, want := range tests {
		assert.Equal(t, want, confirm(strings.NewReader(in), &bytes.Buffer{}, 1024), in)
	}
}

func TestLoadConfigGroupOverride(t *testing.T) {
	t.Setenv("CDN_CATALOG_URL", "http://cdn.local/catalog.json")
	t.Setenv("PATCH_GROUPS", "prefab,sprite")

	cfg, err := loadConfig([]string{"maps", " audio "})
	require.NoError(t, err)
	assert.Equal(t, []string{"maps", "audio"}, cfg.Groups)
	assert.Equal(t, "prefab,sprite", os.Getenv("PATCH_GROUPS"), "the environment is left alone")

	cfg, err = loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefab", "sprite"}, cfg.Groups)

	_, err = loadConfig([]string{" "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PATCH_GROUPS must name at least one group")
}
