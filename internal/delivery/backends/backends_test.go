package backends

import (
	"context"
	"testing"

	"github.com/italolelis/asset_patcher/internal/config"
	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCDNBackend(t *testing.T) {
	cfg := &config.Config{
		Backend:       config.BackendCDN,
		CDNCatalogURL: "http://cdn.local/patches/catalog.json",
		CacheDir:      t.TempDir(),
		MaxParallel:   2,
	}

	b, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &delivery.InstrumentedBackend{}, b)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Backend: "ftp"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid backend: ftp")
}
