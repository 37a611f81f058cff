package webhook_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxen-go/oxen/internal/webhook"
)

func TestDispatchPostsEventToEveryURL(t *testing.T) {
	var mu sync.Mutex
	var received []webhook.Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := webhook.NewDispatcher([]string{srv.URL}, nil)
	d.Dispatch(webhook.Event{Action: "push", Repo: "ana/data", Timestamp: 100})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "push", received[0].Action)
	assert.Equal(t, "ana/data", received[0].Repo)
}

func TestDispatchWithNoURLsIsANoop(t *testing.T) {
	d := webhook.NewDispatcher(nil, nil)
	d.Dispatch(webhook.Event{Action: "push"})
}
