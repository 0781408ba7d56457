// Package backends builds the configured delivery backend.
package backends

import (
	"context"
	"fmt"

	"github.com/italolelis/asset_patcher/internal/config"
	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/italolelis/asset_patcher/internal/delivery/cdn"
	"github.com/italolelis/asset_patcher/internal/delivery/putio"
	"github.com/italolelis/asset_patcher/internal/telemetry"
)

// New is an abstract factory for the delivery backend named by cfg.Backend.
// The result is wrapped with telemetry; a nil tel records nothing.
func New(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry) (delivery.Backend, error) {
	switch cfg.Backend {
	case config.BackendCDN:
		b, err := cdn.NewBackend(cdn.Config{
			CatalogURL:    cfg.CDNCatalogURL,
			BundleBaseURL: cfg.CDNBundleBaseURL,
			CacheDir:      cfg.CacheDir,
			CatalogTTL:    cfg.CatalogTTL,
			MaxParallel:   cfg.MaxParallel,
		})
		if err != nil {
			return nil, err
		}

		return delivery.NewInstrumentedBackend(b, tel, config.BackendCDN), nil
	case config.BackendPutio:
		b := putio.NewBackend(cfg.PutioToken, cfg.PutioRootFolder, cfg.CacheDir, cfg.MaxParallel)

		if err := b.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("authentication error: %w", err)
		}

		return delivery.NewInstrumentedBackend(b, tel, config.BackendPutio), nil
	}

	return nil, fmt.Errorf("invalid backend: %s", cfg.Backend)
}
