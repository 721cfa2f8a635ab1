package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(retries int) *Fetcher {
	f := New(Config{
		MaxRetries:  retries,
		Timeout:     5 * time.Second,
		BackoffBase: time.Millisecond,
	}, zap.NewNop())
	f.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.UserAgent())
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", body)
}

func TestFetch_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(3).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "recovered", body)
	require.Equal(t, int32(3), hits.Load())
}

func TestFetch_ExhaustedRetriesReturnTypedError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *Error
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, srv.URL, fetchErr.URL)
	require.Equal(t, 2, fetchErr.Attempts)
	require.Equal(t, int32(2), hits.Load())
}

func TestFetch_CanceledContextDoesNotRetry(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	started := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := newTestFetcher(3).Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.Equal(t, int32(1), hits.Load())
}
