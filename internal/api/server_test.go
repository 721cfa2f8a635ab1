package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// blockingRunner holds every run open until release is closed, so tests can
// observe the busy state deterministically.
type blockingRunner struct {
	started chan string
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) Run(context.Context) (int, error) {
	r.started <- "refresh"
	<-r.release
	return 5, r.err
}

func (r *blockingRunner) Process(context.Context) (int, error) {
	r.started <- "sync"
	<-r.release
	return 2, r.err
}

func post(t *testing.T, ts *httptest.Server, path string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func getStatus(t *testing.T, ts *httptest.Server) (bool, RunState) {
	t.Helper()
	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Busy bool     `json:"busy"`
		Last RunState `json:"last_run"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Busy, body.Last
}

func waitForIdle(t *testing.T, ts *httptest.Server) RunState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		busy, last := getStatus(t, ts)
		if !busy {
			return last
		}
		select {
		case <-deadline:
			t.Fatal("server never became idle")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestServer_RefreshReturnsRunIDAndRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	ts := httptest.NewServer(NewServer(runner, zap.NewNop()).Handler())
	defer ts.Close()

	resp, body := post(t, ts, "/v1/refresh")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.NotEmpty(t, body["run_id"])
	require.Equal(t, "refresh", <-runner.started)

	busy, _ := getStatus(t, ts)
	require.True(t, busy)

	// Both triggers share the single in-flight slot.
	resp, body = post(t, ts, "/v1/refresh")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotEmpty(t, body["error"])
	resp, _ = post(t, ts, "/v1/sync")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	close(runner.release)
	last := waitForIdle(t, ts)
	require.Equal(t, "refresh", last.Kind)
	require.Equal(t, 5, last.NewRecords)
	require.Empty(t, last.Error)
	require.NotNil(t, last.FinishedAt)
}

func TestServer_SyncRunsAfterPreviousRunFinishes(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	close(runner.release)
	ts := httptest.NewServer(NewServer(runner, zap.NewNop()).Handler())
	defer ts.Close()

	resp, _ := post(t, ts, "/v1/sync")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "sync", <-runner.started)

	last := waitForIdle(t, ts)
	require.Equal(t, "sync", last.Kind)
	require.Equal(t, 2, last.NewRecords)

	resp, _ = post(t, ts, "/v1/refresh")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestServer_RunErrorIsReportedInStatus(t *testing.T) {
	t.Parallel()

	runner := newBlockingRunner()
	runner.err = errors.New("normalizer unreachable")
	close(runner.release)
	ts := httptest.NewServer(NewServer(runner, zap.NewNop()).Handler())
	defer ts.Close()

	resp, _ := post(t, ts, "/v1/refresh")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	last := waitForIdle(t, ts)
	require.Equal(t, "normalizer unreachable", last.Error)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(NewServer(newBlockingRunner(), zap.NewNop()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
