package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(
		filepath.Join(dir, "staging.json"),
		filepath.Join(dir, "cumulative.jsonl"),
		zap.NewNop(),
	)
}

func TestSeenIDs_MissingArtifactMeansFreshStart(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seen, err := store.SeenIDs()
	require.NoError(t, err)
	require.Empty(t, seen)
}

func TestSeenIDs_SkipsMalformedAndURLLessLines(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	lines := strings.Join([]string{
		`{"url_link":"https://example.com/result/11"}`,
		`not json at all`,
		`{"university":"No URL Here"}`,
		``,
		`{"url_link":"https://example.com/result/12"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(store.CumulativePath(), []byte(lines+"\n"), 0o644))

	seen, err := store.SeenIDs()
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"11": {}, "12": {}}, seen)
}

func TestStagingRoundTripAndReset(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	batch := []records.Record{
		{ResultID: "1", University: "State University", URL: "https://example.com/result/1"},
		{ResultID: "2", University: "Tech Institute", URL: "https://example.com/result/2"},
	}
	require.NoError(t, store.WriteStaging(batch))

	got, err := store.ReadStaging()
	require.NoError(t, err)
	require.Equal(t, batch, got)

	require.NoError(t, store.ResetStaging())
	_, err = store.ReadStaging()
	require.ErrorIs(t, err, ErrEmptyStaging)
}

func TestReadStaging_AbsentFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.ReadStaging()
	require.ErrorIs(t, err, ErrNoStaging)
}

func TestAppendCumulative_AppendsOneLinePerRecord(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	first := []records.Record{{ResultID: "1", URL: "https://example.com/result/1"}}
	second := []records.Record{
		{ResultID: "2", URL: "https://example.com/result/2"},
		{ResultID: "3", URL: "https://example.com/result/3"},
	}
	require.NoError(t, store.AppendCumulative(first))
	require.NoError(t, store.AppendCumulative(second))

	data, err := os.ReadFile(store.CumulativePath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)

	// Earlier batches are never rewritten.
	require.Contains(t, lines[0], `"result_id":"1"`)
	require.Contains(t, lines[2], `"result_id":"3"`)

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(store.CumulativePath()))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), "stray temp file %s", e.Name())
	}
}

func TestReadCumulative_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	lines := `{"result_id":"1","url_link":"https://example.com/result/1"}` + "\n" +
		"garbage\n" +
		`{"result_id":"2","url_link":"https://example.com/result/2"}` + "\n"
	require.NoError(t, os.WriteFile(store.CumulativePath(), []byte(lines), 0o644))

	var got []records.Record
	err := store.ReadCumulative(func(_ int, rec records.Record) {
		got = append(got, rec)
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ResultID)
	require.Equal(t, "2", got[1].ResultID)
}
