package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

// jitterFetcher returns the requested URL as the body after a random delay,
// so completion order differs from submission order.
type jitterFetcher struct {
	failIDs map[string]struct{}
}

func (f *jitterFetcher) Fetch(_ context.Context, url string) (string, error) {
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	for id := range f.failIDs {
		if strings.HasSuffix(url, "/"+id) {
			return "", errors.New("boom")
		}
	}
	return url, nil
}

// echoParser derives the program name from the fetched URL so each record's
// merged fields identify which detail page produced them.
type echoParser struct{}

func (echoParser) Parse(body string) (records.DetailFields, error) {
	parts := strings.Split(body, "/")
	return records.DetailFields{Program: "program-" + parts[len(parts)-1]}, nil
}

func batch(n int) []records.Record {
	recs := make([]records.Record, n)
	for i := range recs {
		recs[i] = records.Record{ResultID: fmt.Sprintf("%d", 1000+i)}
	}
	return recs
}

func TestEnricher_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	e := New(Config{DetailURL: "https://example.com/result/%s", Workers: 4},
		&jitterFetcher{}, echoParser{}, zap.NewNop())

	recs := batch(20)
	e.Enrich(context.Background(), recs)

	for i, r := range recs {
		require.Equal(t, fmt.Sprintf("%d", 1000+i), r.ResultID)
		require.Equal(t, "program-"+r.ResultID, r.Program)
	}
}

func TestEnricher_FailedDetailKeepsListingFields(t *testing.T) {
	t.Parallel()

	fetch := &jitterFetcher{failIDs: map[string]struct{}{"1001": {}}}
	e := New(Config{DetailURL: "https://example.com/result/%s", Workers: 2},
		fetch, echoParser{}, zap.NewNop())

	recs := batch(3)
	recs[1].Program = "from listing"
	e.Enrich(context.Background(), recs)

	require.Equal(t, "program-1000", recs[0].Program)
	require.Equal(t, "from listing", recs[1].Program)
	require.Equal(t, "program-1002", recs[2].Program)
}

func TestEnricher_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	e := New(Config{DetailURL: "https://example.com/result/%s"},
		&jitterFetcher{}, echoParser{}, zap.NewNop())
	e.Enrich(context.Background(), nil)
}
