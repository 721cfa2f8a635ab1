// Package scrape parses the remote survey listing and result detail pages.
package scrape

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

var (
	resultHrefPattern = regexp.MustCompile(`/result/(\d+)`)
	termPattern       = regexp.MustCompile(`(Fall|Spring|Summer|Winter)\s+\d{4}`)
)

// citizenshipValues maps the listing's tag vocabulary onto the two canonical
// classifications.
var citizenshipValues = map[string]string{
	"international": "International",
	"us":            "US",
	"u.s.":          "US",
	"american":      "US",
}

// ListingParser turns one survey page into partial records.
type ListingParser struct {
	baseURL string
}

// NewListingParser builds a parser that resolves result URLs against baseURL.
func NewListingParser(baseURL string) *ListingParser {
	return &ListingParser{baseURL: strings.TrimRight(baseURL, "/")}
}

// Parse extracts the ordered partial records from one page of the listing.
//
// The page is a flat sequence of table rows. A row with at least four cells
// and a /result/<id> anchor starts a new record; any row after that is
// scanned for term and citizenship tags which attach to the most recent
// record. A primary-shaped row without a result anchor is skipped entirely.
// An empty return slice means the listing is exhausted.
func (p *ListingParser) Parse(body string) ([]records.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var results []records.Record
	// Index of the most recently created record; appends can reallocate the
	// slice, so metadata rows address it by index rather than pointer.
	currentIdx := -1

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() >= 4 {
			id := resultID(row)
			if id == "" {
				return
			}
			results = append(results, records.Record{
				ResultID:   id,
				University: CleanText(cells.Eq(0).Text()),
				Program:    CleanText(cells.Eq(1).Text()),
				DateAdded:  CleanText(cells.Eq(2).Text()),
				Status:     CleanText(cells.Eq(3).Text()),
				URL:        fmt.Sprintf("%s/result/%s", p.baseURL, id),
			})
			currentIdx = len(results) - 1
		}

		if currentIdx < 0 {
			return
		}
		row.Find("div").Each(func(_ int, tag *goquery.Selection) {
			text := CleanText(tag.Text())
			switch {
			case termPattern.MatchString(text):
				results[currentIdx].Term = termPattern.FindString(text)
			default:
				if canonical, ok := citizenshipValues[strings.ToLower(text)]; ok {
					results[currentIdx].Citizenship = canonical
				}
			}
		})
	})

	return results, nil
}

func resultID(row *goquery.Selection) string {
	var id string
	row.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if m := resultHrefPattern.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}
