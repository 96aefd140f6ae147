package ingest

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerAlwaysAcknowledges(t *testing.T) {
	t.Parallel()

	l := NewListener(ListenerConfig{
		Addr:        "127.0.0.1:0",
		WebhookPath: "/webhook",
		PeerPath:    "/newtrade",
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metric 1\n"))
		}),
	}, zerolog.Nop())

	var mu sync.Mutex
	var webhooks, peers []string
	l.HandleWebhook(func(b []byte) { mu.Lock(); webhooks = append(webhooks, string(b)); mu.Unlock() })
	l.HandlePeer(func(b []byte) { mu.Lock(); peers = append(peers, string(b)); mu.Unlock() })

	srv := httptest.NewServer(l.Handler())
	t.Cleanup(srv.Close)

	for _, body := range []string{flatSignal, `garbage`, `{}`} {
		resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Post(srv.URL+"/newtrade", "application/json", strings.NewReader(`{"action":"Hedge"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, webhooks, 3)
	assert.Equal(t, []string{`{"action":"Hedge"}`}, peers)
}

func TestListenerGivesUpAfterBoundedRetries(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = busy.Close() })

	l := NewListener(ListenerConfig{
		Addr:            busy.Addr().String(),
		WebhookPath:     "/webhook",
		MaxBindAttempts: 3,
		RetryInterval:   10 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, l.Run(ctx))
	assert.True(t, l.Failed())
	assert.False(t, l.Up())
}

func TestListenerServesUntilCancelled(t *testing.T) {
	t.Parallel()

	free, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := free.Addr().String()
	require.NoError(t, free.Close())

	l := NewListener(ListenerConfig{Addr: addr, WebhookPath: "/webhook"}, zerolog.Nop())
	var statuses []bool
	var mu sync.Mutex
	l.OnStatus = func(up bool) { mu.Lock(); statuses = append(statuses, up); mu.Unlock() }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, l.Up, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post("http://"+addr+"/webhook", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.False(t, l.Up())
	assert.False(t, l.Failed())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, statuses)
}
