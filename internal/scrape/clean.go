package scrape

import (
	"regexp"
	"strings"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

var decisionDatePattern = regexp.MustCompile(
	`\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\b`,
)

// CleanText trims and collapses all runs of whitespace to single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeStatus reduces the free-text decision string to a canonical form:
//
//	contains "wait"              -> "Waitlisted"
//	contains "interview"         -> "Interview"
//	starts with Accepted/Rejected -> keyword, plus ": D Mon" when the text
//	                                 carries a day/month pair
//	anything else                -> unchanged
func NormalizeStatus(status string) string {
	if status == "" {
		return ""
	}

	lower := strings.ToLower(status)

	if strings.Contains(lower, "wait") {
		return "Waitlisted"
	}
	if strings.Contains(lower, "interview") {
		return "Interview"
	}

	if strings.HasPrefix(lower, "accepted") || strings.HasPrefix(lower, "rejected") {
		decision := strings.TrimSuffix(strings.Fields(status)[0], ":")
		m := decisionDatePattern.FindStringSubmatch(status)
		if m == nil {
			return decision
		}
		return decision + ": " + m[1] + " " + m[2]
	}

	return status
}

// CleanRecord applies whitespace normalization to every text field and the
// status rule to the decision field, mutating the record in place.
func CleanRecord(r *records.Record) {
	r.University = CleanText(r.University)
	r.Program = CleanText(r.Program)
	r.DegreeType = CleanText(r.DegreeType)
	r.DateAdded = CleanText(r.DateAdded)
	r.Term = CleanText(r.Term)
	r.Citizenship = CleanText(r.Citizenship)
	r.Notes = CleanText(r.Notes)
	r.URL = CleanText(r.URL)
	r.GPA = CleanText(r.GPA)
	r.GREGeneral = CleanText(r.GREGeneral)
	r.GREVerbal = CleanText(r.GREVerbal)
	r.GREWriting = CleanText(r.GREWriting)
	r.Status = NormalizeStatus(CleanText(r.Status))
}

// CleanBatch runs CleanRecord over every record in the slice.
func CleanBatch(recs []records.Record) {
	for i := range recs {
		CleanRecord(&recs[i])
	}
}
