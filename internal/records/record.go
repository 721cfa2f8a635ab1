// Package records defines the applicant record shared across the pipeline.
package records

import (
	"fmt"
	"regexp"
)

// Record is the unit of work throughout the harvest pipeline. It is created
// partially by the listing parser, enriched in place from the detail page,
// and finally annotated with normalizer output before being appended to the
// cumulative artifact.
//
// Text fields use "" to mean "not reported". The two normalized fields are
// pointers so that a failed normalizer call (nil) is distinguishable from an
// empty standardized name.
type Record struct {
	ResultID    string `json:"result_id"`
	University  string `json:"university"`
	Program     string `json:"program_name"`
	DegreeType  string `json:"degree_type"`
	DateAdded   string `json:"date_added"`
	Status      string `json:"applicant_status"`
	Term        string `json:"start_term"`
	Citizenship string `json:"us_or_international"`
	Notes       string `json:"comments"`
	URL         string `json:"url_link"`
	GPA         string `json:"gpa"`
	GREGeneral  string `json:"gre_general"`
	GREVerbal   string `json:"gre_verbal"`
	GREWriting  string `json:"gre_analytical_writing"`

	NormalizedProgram    *string `json:"normalized_program"`
	NormalizedUniversity *string `json:"normalized_university"`
}

// DetailFields holds the supplementary fields extracted from one result
// detail page. Empty strings mean the field was absent or a placeholder.
type DetailFields struct {
	Program    string
	DegreeType string
	Notes      string
	GPA        string
	GREGeneral string
	GREVerbal  string
	GREWriting string
}

// MergeDetail folds detail-page fields into the record. The detail page
// carries the site's standardized program name, so it replaces the listing
// cell when present; the remaining fields only exist on the detail page.
func (r *Record) MergeDetail(d DetailFields) {
	if d.Program != "" {
		r.Program = d.Program
	}
	if d.DegreeType != "" {
		r.DegreeType = d.DegreeType
	}
	r.Notes = d.Notes
	r.GPA = d.GPA
	r.GREGeneral = d.GREGeneral
	r.GREVerbal = d.GREVerbal
	r.GREWriting = d.GREWriting
}

var resultURLPattern = regexp.MustCompile(`/result/(\d+)`)

// IDFromURL extracts the numeric result ID from a result URL. It returns an
// error when the URL does not contain a /result/<id> path segment.
func IDFromURL(url string) (string, error) {
	m := resultURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("no result id in url %q", url)
	}
	return m[1], nil
}
