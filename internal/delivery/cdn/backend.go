// Package cdn serves patch groups described by a catalog published on a CDN.
// Bundles are cached on disk; a group's pending size is the size of the
// bundles missing from the cache.
package cdn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	CatalogURL string
	// BundleBaseURL defaults to the directory holding the catalog.
	BundleBaseURL string
	CacheDir      string
	CatalogTTL    time.Duration
	MaxParallel   int
	HTTPClient    *http.Client
}

type Backend struct {
	catalogURL    string
	bundleBaseURL string
	cacheDir      string
	catalogTTL    time.Duration
	maxParallel   int
	httpClient    *http.Client
	now           func() time.Time

	mu        sync.Mutex
	catalog   *Catalog
	fetchedAt time.Time
}

func NewBackend(cfg Config) (*Backend, error) {
	if cfg.CatalogURL == "" {
		return nil, fmt.Errorf("catalog url is required")
	}

	base := cfg.BundleBaseURL
	if base == "" {
		u, err := url.Parse(cfg.CatalogURL)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog url: %w", err)
		}

		u.Path = path.Dir(u.Path)
		u.RawQuery = ""
		base = u.String()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Backend{
		catalogURL:    cfg.CatalogURL,
		bundleBaseURL: base,
		cacheDir:      cfg.CacheDir,
		catalogTTL:    cfg.CatalogTTL,
		maxParallel:   cfg.MaxParallel,
		httpClient:    client,
		now:           time.Now,
	}, nil
}

// RemoteSize returns the bytes of the group's bundles not yet in the cache.
func (b *Backend) RemoteSize(ctx context.Context, group string) (int64, error) {
	files, err := b.pendingFiles(ctx, group)
	if err != nil {
		return 0, err
	}

	return delivery.PendingSize(files), nil
}

// StartTransfer downloads the group's pending bundles into the cache.
func (b *Backend) StartTransfer(ctx context.Context, group string) (delivery.Handle, error) {
	files, err := b.pendingFiles(ctx, group)
	if err != nil {
		return nil, err
	}

	logctx.LoggerFromContext(ctx).InfoContext(ctx, "starting cdn transfer", "group", group, "bundles", len(files))

	return delivery.Fetch(ctx, files, b.maxParallel, nil), nil
}

// Catalog returns the current catalog, fetching it again once the cached
// copy is older than the configured TTL.
func (b *Backend) Catalog(ctx context.Context) (*Catalog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.catalog != nil && b.now().Sub(b.fetchedAt) < b.catalogTTL {
		return b.catalog, nil
	}

	catalog, err := b.fetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	b.catalog = catalog
	b.fetchedAt = b.now()

	logctx.LoggerFromContext(ctx).DebugContext(ctx, "catalog fetched", "version", catalog.Version, "groups", len(catalog.Groups))

	return catalog, nil
}

func (b *Backend) fetchCatalog(ctx context.Context) (*Catalog, error) {
	resp, err := b.get(ctx, "fetch_catalog", b.catalogURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	compressed := strings.HasSuffix(resp.Request.URL.Path, ".zst") ||
		strings.EqualFold(resp.Header.Get("Content-Encoding"), "zstd")

	return decodeCatalog(resp.Body, b.catalogURL, compressed)
}

func (b *Backend) pendingFiles(ctx context.Context, group string) ([]delivery.File, error) {
	catalog, err := b.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	bundles, ok := catalog.Groups[group]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", group, delivery.ErrGroupNotFound)
	}

	pending := make([]delivery.File, 0, len(bundles))

	for _, bundle := range bundles {
		target := filepath.Join(b.cacheDir, group, bundle.CacheName())
		if delivery.IsCached(target, bundle.Size) {
			continue
		}

		bundleURL, err := url.JoinPath(b.bundleBaseURL, group, bundle.Name)
		if err != nil {
			return nil, &delivery.CatalogError{Source: b.catalogURL, Reason: "invalid bundle url", Err: err}
		}

		pending = append(pending, delivery.File{
			Name: bundle.Name,
			Path: target,
			Size: bundle.Size,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				resp, err := b.get(ctx, "fetch_bundle", bundleURL)
				if err != nil {
					return nil, err
				}

				return resp.Body, nil
			},
		})
	}

	return pending, nil
}

func (b *Backend) get(ctx context.Context, operation, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &delivery.NetworkError{Operation: operation, Message: err.Error(), Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()

		return nil, &delivery.AuthenticationError{
			Operation: operation,
			Err:       &delivery.NetworkError{Operation: operation, StatusCode: resp.StatusCode, Message: resp.Status},
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()

		return nil, &delivery.NetworkError{Operation: operation, StatusCode: resp.StatusCode, Message: resp.Status}
	}

	return resp, nil
}
