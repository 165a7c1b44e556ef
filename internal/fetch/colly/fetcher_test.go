package collyfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"promptharvest/internal/fetch"
)

func TestFetchReturnsDocument(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seenAgents []string
	var seenHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seenAgents = append(seenAgents, r.UserAgent())
		seenHeader = r.Header.Get("X-Harvest")
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>prices</html>"))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, fetch.NewUserAgentPool(nil, 1))

	resp, err := f.Fetch(context.Background(), fetch.Request{
		URL:     srv.URL,
		Headers: http.Header{"X-Harvest": {"1"}},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []byte("<html>prices</html>"), resp.Body)
	require.Equal(t, "text/html", resp.Headers.Get("Content-Type"))
	require.False(t, resp.Rendered)
	require.Positive(t, resp.Latency)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "1", seenHeader)
	require.NotEmpty(t, seenAgents[0], "rotated user agent should be sent")
}

func TestFetchErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second}, nil)
	_, err := f.Fetch(context.Background(), fetch.Request{URL: srv.URL})
	require.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	f := New(Config{Timeout: 30 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, fetch.Request{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}
