package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Waitlisted for review", "Waitlisted"},
		{"Wait listed", "Waitlisted"},
		{"Interview scheduled", "Interview"},
		{"Accepted 6 Feb", "Accepted: 6 Feb"},
		{"Accepted on 15 Mar via email", "Accepted: 15 Mar"},
		{"Accepted", "Accepted"},
		{"Rejected 28 Dec", "Rejected: 28 Dec"},
		{"Rejected: 1 Jan", "Rejected: 1 Jan"},
		{"Pending", "Pending"},
		{"Other", "Other"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeStatus(tc.in), "status %q", tc.in)
	}
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", CleanText("  a \n b\t\tc  "))
	require.Equal(t, "", CleanText("   \n\t "))
}

func TestCleanRecord(t *testing.T) {
	t.Parallel()

	rec := records.Record{
		University: " State   University ",
		Program:    "\tApplied  Math\n",
		Status:     "  Accepted 6 Feb ",
		Notes:      "great   news",
	}
	CleanRecord(&rec)

	require.Equal(t, "State University", rec.University)
	require.Equal(t, "Applied Math", rec.Program)
	require.Equal(t, "Accepted: 6 Feb", rec.Status)
	require.Equal(t, "great news", rec.Notes)
}
