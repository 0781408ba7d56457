package putio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/italolelis/asset_patcher/internal/delivery"
	putio "github.com/putdotio/go-putio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	folderJSON = `{"id":%d,"name":%q,"size":0,"file_type":"FOLDER","content_type":"application/x-directory","parent_id":%d}`
	fileJSON   = `{"id":%d,"name":%q,"size":%d,"file_type":"FILE","content_type":"application/octet-stream","parent_id":%d}`
)

var listings = map[string][]string{
	"0":   {fmt.Sprintf(folderJSON, 1, "patches", 0), fmt.Sprintf(folderJSON, 2, "movies", 0)},
	"1":   {fmt.Sprintf(folderJSON, 10, "prefab", 1), fmt.Sprintf(folderJSON, 11, "sprite", 1)},
	"10":  {fmt.Sprintf(fileJSON, 100, "hero.bundle", 5, 10), fmt.Sprintf(folderJSON, 101, "fx", 10)},
	"101": {fmt.Sprintf(fileJSON, 102, "spark.bundle", 3, 101)},
	"11":  {},
}

var contents = map[string]string{
	"100": "hello",
	"102": "abc",
}

func newPutioServer(t *testing.T, listStatus int) *httptest.Server {
	t.Helper()

	var server *httptest.Server

	mux := http.NewServeMux()

	mux.HandleFunc("/v2/files/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if listStatus != http.StatusOK {
			w.WriteHeader(listStatus)
			fmt.Fprint(w, `{"error_type":"ERROR","error_message":"server error"}`)

			return
		}

		parent := r.URL.Query().Get("parent_id")

		children, ok := listings[parent]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error_type":"NOT_FOUND","error_message":"not found"}`)

			return
		}

		fmt.Fprintf(w, `{"files":[%s],"parent":{"id":%s,"name":"parent","content_type":"application/x-directory"},"status":"OK"}`,
			strings.Join(children, ","), parent)
	})

	mux.HandleFunc("/v2/files/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/files/"), "/url")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"url":"%s/download/%s","status":"OK"}`, server.URL, id)
	})

	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := contents[strings.TrimPrefix(r.URL.Path, "/download/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		fmt.Fprint(w, body)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func newTestBackend(serverURL, cacheDir string) *Backend {
	goputioClient := putio.NewClient(nil)
	u, _ := url.Parse(serverURL)
	goputioClient.BaseURL = u

	return newBackend(goputioClient, "patches", cacheDir, 2)
}

func TestRemoteSize(t *testing.T) {
	server := newPutioServer(t, http.StatusOK)
	cacheDir := t.TempDir()
	backend := newTestBackend(server.URL, cacheDir)
	ctx := context.Background()

	size, err := backend.RemoteSize(ctx, "prefab")
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	size, err = backend.RemoteSize(ctx, "sprite")
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = backend.RemoteSize(ctx, "audio")
	assert.ErrorIs(t, err, delivery.ErrGroupNotFound)
}

func TestRemoteSizeSkipsCachedFiles(t *testing.T) {
	server := newPutioServer(t, http.StatusOK)
	cacheDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, "prefab"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "prefab", "hero.bundle"), []byte("hello"), 0o600))

	size, err := newTestBackend(server.URL, cacheDir).RemoteSize(context.Background(), "prefab")
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestStartTransferMirrorsGroupFolder(t *testing.T) {
	server := newPutioServer(t, http.StatusOK)
	cacheDir := t.TempDir()
	backend := newTestBackend(server.URL, cacheDir)
	ctx := context.Background()

	h, err := backend.StartTransfer(ctx, "prefab")
	require.NoError(t, err)

	require.Eventually(t, h.IsDone, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.Err())
	assert.Equal(t, int64(8), h.DownloadedBytes())
	h.Release()

	data, err := os.ReadFile(filepath.Join(cacheDir, "prefab", "fx", "spark.bundle"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	size, err := backend.RemoteSize(ctx, "prefab")
	require.NoError(t, err)
	assert.Zero(t, size, "a finished group has nothing pending")
}

func TestRemoteSizeListFailure(t *testing.T) {
	server := newPutioServer(t, http.StatusInternalServerError)

	_, err := newTestBackend(server.URL, t.TempDir()).RemoteSize(context.Background(), "prefab")

	var netErr *delivery.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "list_files", netErr.Operation)
}

func TestAuthenticateFailure(t *testing.T) {
	server := newPutioServer(t, http.StatusOK)

	err := newTestBackend(server.URL, t.TempDir()).Authenticate(context.Background())

	var authErr *delivery.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "account_info", authErr.Operation)
}
