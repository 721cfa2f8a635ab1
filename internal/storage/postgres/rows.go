package postgres

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/artifact"
	"github.com/gradmetrics/admit-harvester/internal/records"
	"github.com/gradmetrics/admit-harvester/internal/telemetry"
)

// dateLayout matches the listing's free-text date, e.g. "February 08, 2026".
const dateLayout = "January 2, 2006"

// Row is one destination-table tuple. Pointers carry SQL NULL for
// not-reported values.
type Row struct {
	Program              *string
	Comments             *string
	DateAdded            *time.Time
	URL                  *string
	Status               *string
	Term                 *string
	Citizenship          *string
	GPA                  *float64
	GREGeneral           *float64
	GREVerbal            *float64
	GREWriting           *float64
	Degree               *string
	NormalizedProgram    *string
	NormalizedUniversity *string
}

// RowFromRecord converts one cumulative-artifact record into a table row.
// It fails only when the date field is present but unparseable; everything
// else degrades to NULL.
func RowFromRecord(rec records.Record) (Row, error) {
	row := Row{
		Program:              combineProgram(rec.Program, rec.University),
		Comments:             nullable(rec.Notes),
		URL:                  nullable(rec.URL),
		Status:               nullable(rec.Status),
		Term:                 nullable(rec.Term),
		Citizenship:          nullable(rec.Citizenship),
		GPA:                  nullableFloat(rec.GPA),
		GREGeneral:           nullableFloat(rec.GREGeneral),
		GREVerbal:            nullableFloat(rec.GREVerbal),
		GREWriting:           nullableFloat(rec.GREWriting),
		Degree:               nullable(rec.DegreeType),
		NormalizedProgram:    rec.NormalizedProgram,
		NormalizedUniversity: rec.NormalizedUniversity,
	}
	if rec.DateAdded != "" {
		parsed, err := time.Parse(dateLayout, rec.DateAdded)
		if err != nil {
			return Row{}, fmt.Errorf("parse date %q: %w", rec.DateAdded, err)
		}
		row.DateAdded = &parsed
	}
	return row, nil
}

// LoadRows parses every line of the cumulative artifact into rows, skipping
// (with a warning) records whose date fails to parse.
func LoadRows(store *artifact.Store, logger *zap.Logger) ([]Row, error) {
	var rows []Row
	skipped := 0
	err := store.ReadCumulative(func(lineNo int, rec records.Record) {
		row, convErr := RowFromRecord(rec)
		if convErr != nil {
			skipped++
			logger.Warn("skipping unparseable record",
				zap.Int("line", lineNo),
				zap.String("url", rec.URL),
				zap.Error(convErr),
			)
			return
		}
		rows = append(rows, row)
	})
	if err != nil {
		return nil, err
	}
	telemetry.SyncRows("parsed", len(rows))
	telemetry.SyncRows("skipped", skipped)
	return rows, nil
}

// combineProgram joins the program and university names the way the
// destination schema stores them: "program - university", or whichever one
// is present.
func combineProgram(program, university string) *string {
	switch {
	case program != "" && university != "":
		combined := program + " - " + university
		return &combined
	case program != "":
		return &program
	case university != "":
		return &university
	default:
		return nil
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
