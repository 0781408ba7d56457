// Package putio serves patch groups from a put.io account. Every group is a
// folder under a root folder; its files are mirrored into a local cache.
package putio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/putdotio/go-putio"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

type Backend struct {
	putioClient *putio.Client
	httpClient  *http.Client
	rootFolder  string
	cacheDir    string
	maxParallel int
}

// NewBackend creates a put.io backend authenticated with token.
func NewBackend(token, rootFolder, cacheDir string, maxParallel int) *Backend {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	oauthClient := oauth2.NewClient(context.Background(), tokenSource)

	return newBackend(putio.NewClient(oauthClient), rootFolder, cacheDir, maxParallel)
}

func newBackend(client *putio.Client, rootFolder, cacheDir string, maxParallel int) *Backend {
	return &Backend{
		putioClient: client,
		httpClient:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		rootFolder:  rootFolder,
		cacheDir:    cacheDir,
		maxParallel: maxParallel,
	}
}

func (b *Backend) Authenticate(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "authenticating with Put.io")

	user, err := b.putioClient.Account.Info(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get account info", "err", err)

		return &delivery.AuthenticationError{Operation: "account_info", Err: err}
	}

	logger.InfoContext(ctx, "authenticated with Put.io", "user", user.Username)

	return nil
}

// RemoteSize returns the bytes of the group's files not yet in the cache.
func (b *Backend) RemoteSize(ctx context.Context, group string) (int64, error) {
	files, err := b.pendingFiles(ctx, group)
	if err != nil {
		return 0, err
	}

	return delivery.PendingSize(files), nil
}

// StartTransfer downloads the group's pending files into the cache.
func (b *Backend) StartTransfer(ctx context.Context, group string) (delivery.Handle, error) {
	files, err := b.pendingFiles(ctx, group)
	if err != nil {
		return nil, err
	}

	logctx.LoggerFromContext(ctx).InfoContext(ctx, "starting put.io transfer", "group", group, "files", len(files))

	return delivery.Fetch(ctx, files, b.maxParallel, nil), nil
}

func (b *Backend) pendingFiles(ctx context.Context, group string) ([]delivery.File, error) {
	rootID, err := b.findFolder(ctx, 0, b.rootFolder)
	if err != nil {
		return nil, err
	}

	groupID, err := b.findFolder(ctx, rootID, group)
	if err != nil {
		return nil, err
	}

	remote, err := b.listFilesRecursively(ctx, groupID, "")
	if err != nil {
		return nil, err
	}

	pending := make([]delivery.File, 0, len(remote))

	for _, f := range remote {
		target := filepath.Join(b.cacheDir, group, f.Path)
		if delivery.IsCached(target, f.Size) {
			continue
		}

		id := f.ID
		pending = append(pending, delivery.File{
			Name: f.Path,
			Path: target,
			Size: f.Size,
			Open: func(ctx context.Context) (io.ReadCloser, error) {
				return b.grabFile(ctx, id)
			},
		})
	}

	return pending, nil
}

type remoteFile struct {
	ID   int64
	Path string
	Size int64
}

func (b *Backend) findFolder(ctx context.Context, parentID int64, name string) (int64, error) {
	children, _, err := b.putioClient.Files.List(ctx, parentID)
	if err != nil {
		return 0, &delivery.NetworkError{Operation: "list_files", Message: err.Error(), Err: err}
	}

	for _, f := range children {
		if f.IsDir() && f.Name == name {
			return f.ID, nil
		}
	}

	return 0, fmt.Errorf("folder %q: %w", name, delivery.ErrGroupNotFound)
}

func (b *Backend) listFilesRecursively(ctx context.Context, parentID int64, basePath string) ([]remoteFile, error) {
	files, _, err := b.putioClient.Files.List(ctx, parentID)
	if err != nil {
		return nil, &delivery.NetworkError{Operation: "list_files", Message: err.Error(), Err: err}
	}

	var result []remoteFile

	for _, f := range files {
		path := filepath.Join(basePath, f.Name)

		if f.IsDir() || strings.EqualFold(f.FileType, "folder") {
			nested, err := b.listFilesRecursively(ctx, f.ID, path)
			if err != nil {
				return nil, err
			}

			result = append(result, nested...)

			continue
		}

		result = append(result, remoteFile{ID: f.ID, Path: path, Size: f.Size})
	}

	return result, nil
}

func (b *Backend) grabFile(ctx context.Context, fileID int64) (io.ReadCloser, error) {
	url, err := b.putioClient.Files.URL(ctx, fileID, false)
	if err != nil {
		return nil, &delivery.NetworkError{Operation: "file_url", Message: err.Error(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &delivery.NetworkError{Operation: "fetch_file", Message: err.Error(), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, &delivery.NetworkError{Operation: "fetch_file", StatusCode: resp.StatusCode, Message: resp.Status}
	}

	return resp.Body, nil
}
