package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/italolelis/asset_patcher/internal/patch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier_Notify(t *testing.T) {
	var got map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := &DiscordNotifier{WebhookURL: server.URL}

	require.NoError(t, n.Notify(context.Background(), "hello"))
	assert.Equal(t, "hello", got["content"])
}

func TestDiscordNotifier_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := (&DiscordNotifier{WebhookURL: server.URL}).Notify(context.Background(), "x")
	assert.EqualError(t, err, "webhook failed with status 429")

	err = (&DiscordNotifier{}).Notify(context.Background(), "x")
	assert.EqualError(t, err, "webhook URL is not set")
}

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (c *captureNotifier) Notify(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, content)

	return c.err
}

func TestRunNotifierMessages(t *testing.T) {
	capture := &captureNotifier{}
	rn := NewRunNotifier(context.Background(), capture)

	var obs patch.Observer = rn

	snap := patch.Snapshot{RunID: "r1", Groups: []string{"prefab", "sprite"}, Total: 3 * 1024 * 1024, Percent: 70}

	obs.OnTotalSizeKnown(snap)
	obs.OnProgress(snap)
	obs.OnSucceeded(snap)
	rn.Wait()

	obs.OnFailed(snap, errors.New("cdn down"))
	rn.Wait()

	obs.OnUpToDate(snap)
	rn.Wait()

	require.Len(t, capture.messages, 3)
	assert.Equal(t, "Patch applied: 3 MB downloaded for prefab, sprite.", capture.messages[0])
	assert.Equal(t, "Patch failed at 70 %: cdn down", capture.messages[1])
	assert.Equal(t, "Content is up to date (prefab, sprite).", capture.messages[2])
}

func TestRunNotifierSurvivesDeliveryFailure(t *testing.T) {
	capture := &captureNotifier{err: errors.New("offline")}
	rn := NewRunNotifier(context.Background(), capture)

	rn.OnSucceeded(patch.Snapshot{RunID: "r1", Total: 1})
	rn.Wait()

	assert.Len(t, capture.messages, 1)
}
