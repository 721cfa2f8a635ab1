package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

// placeholderValues are numeric strings the detail page renders when the
// applicant reported nothing; they are coerced to "" rather than taken as
// literal scores.
var placeholderValues = map[string]struct{}{
	"0":     {},
	"0.0":   {},
	"0.00":  {},
	"99.99": {},
}

// DetailParser extracts supplementary fields from one result detail page.
type DetailParser struct{}

// NewDetailParser builds a DetailParser.
func NewDetailParser() *DetailParser {
	return &DetailParser{}
}

// Parse applies both extraction strategies to the detail page: exact-label
// dt/dd pairs for the named fields, and colon-terminated span pairs for the
// three score fields. Missing elements yield empty fields, never errors.
func (p *DetailParser) Parse(body string) (records.DetailFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return records.DetailFields{}, fmt.Errorf("parse detail html: %w", err)
	}

	fields := records.DetailFields{
		Program:    extractLabeled(doc, "Program"),
		DegreeType: extractLabeled(doc, "Degree Type"),
		Notes:      extractLabeled(doc, "Notes"),
		GPA:        stripPlaceholder(extractLabeled(doc, "Undergrad GPA")),
	}
	extractScores(doc, &fields)
	return fields, nil
}

// extractLabeled finds the dt whose text equals label and returns the text
// of the dd inside the same parent element.
func extractLabeled(doc *goquery.Document, label string) string {
	var value string
	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if CleanText(dt.Text()) != label {
			return true
		}
		value = CleanText(dt.Parent().Find("dd").First().Text())
		return false
	})
	return value
}

// extractScores walks the page's spans in document order. A span whose text
// ends in a colon labels the immediately following span; a label that is the
// last span on the page has no value and is left unset.
func extractScores(doc *goquery.Document, fields *records.DetailFields) {
	spans := doc.Find("span")
	spans.Each(func(i int, span *goquery.Selection) {
		label := strings.ToLower(CleanText(span.Text()))
		if !strings.HasSuffix(label, ":") {
			return
		}
		if i+1 >= spans.Length() {
			return
		}
		value := stripPlaceholder(CleanText(spans.Eq(i + 1).Text()))
		switch {
		case strings.HasPrefix(label, "gre general"):
			fields.GREGeneral = value
		case strings.HasPrefix(label, "gre verbal"):
			fields.GREVerbal = value
		case strings.HasPrefix(label, "analytical writing"):
			fields.GREWriting = value
		}
	})
}

func stripPlaceholder(value string) string {
	if _, ok := placeholderValues[value]; ok {
		return ""
	}
	return value
}
