// Package artifact manages the on-disk staging and cumulative files.
//
// The staging artifact is a JSON array holding exactly the current run's
// cleaned records and is overwritten wholesale each run. The cumulative
// artifact is an append-only NDJSON file holding every normalized record
// ever produced; it is the system of record for deduplication.
package artifact

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gradmetrics/admit-harvester/internal/records"
)

// Sentinel results for the empty-work cases, so callers branch on explicit
// states instead of catching file errors.
var (
	ErrNoStaging    = errors.New("staging artifact does not exist")
	ErrEmptyStaging = errors.New("staging artifact holds no records")
)

// Store reads and writes the two pipeline artifacts.
type Store struct {
	stagingPath    string
	cumulativePath string
	logger         *zap.Logger
}

// NewStore builds a Store over the two artifact paths.
func NewStore(stagingPath, cumulativePath string, logger *zap.Logger) *Store {
	return &Store{
		stagingPath:    stagingPath,
		cumulativePath: cumulativePath,
		logger:         logger,
	}
}

// CumulativePath returns the location of the cumulative NDJSON artifact.
func (s *Store) CumulativePath() string { return s.cumulativePath }

// SeenIDs scans the cumulative artifact and returns the set of result IDs
// already ingested. A missing artifact means a fresh start, not an error.
// Lines that fail to parse or lack a result URL are skipped.
func (s *Store) SeenIDs() (map[string]struct{}, error) {
	seen := make(map[string]struct{})

	f, err := os.Open(s.cumulativePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("cumulative artifact not found; starting fresh",
				zap.String("path", s.cumulativePath))
			return seen, nil
		}
		return nil, fmt.Errorf("open cumulative artifact: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec records.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.URL == "" {
			continue
		}
		id, err := records.IDFromURL(rec.URL)
		if err != nil {
			continue
		}
		seen[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan cumulative artifact: %w", err)
	}

	s.logger.Info("loaded seen ids", zap.Int("count", len(seen)))
	return seen, nil
}

// WriteStaging overwrites the staging artifact with the batch.
func (s *Store) WriteStaging(recs []records.Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal staging batch: %w", err)
	}
	if err := os.WriteFile(s.stagingPath, data, 0o644); err != nil {
		return fmt.Errorf("write staging artifact: %w", err)
	}
	return nil
}

// ReadStaging loads the current staging batch. It returns ErrNoStaging when
// the file is absent and ErrEmptyStaging when it holds an empty array.
func (s *Store) ReadStaging() ([]records.Record, error) {
	data, err := os.ReadFile(s.stagingPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoStaging
		}
		return nil, fmt.Errorf("read staging artifact: %w", err)
	}
	var recs []records.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode staging artifact: %w", err)
	}
	if len(recs) == 0 {
		return nil, ErrEmptyStaging
	}
	return recs, nil
}

// ResetStaging overwrites the staging artifact with an empty batch so the
// same records are never normalized twice.
func (s *Store) ResetStaging() error {
	return s.WriteStaging([]records.Record{})
}

// AppendCumulative appends one NDJSON line per record to the cumulative
// artifact. The batch is first written to a temporary file in the same
// directory and then copied onto the artifact, so a crash before the copy
// leaves the artifact untouched. A crash during the final copy is the one
// acknowledged window of partial-write risk.
func (s *Store) AppendCumulative(recs []records.Record) error {
	dir := filepath.Dir(s.cumulativePath)
	tmp, err := os.CreateTemp(dir, "cumulative-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp batch file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	for i := range recs {
		if err := enc.Encode(&recs[i]); err != nil {
			tmp.Close()
			return fmt.Errorf("encode record %s: %w", recs[i].ResultID, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp batch file: %w", err)
	}

	src, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("reopen temp batch file: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(s.cumulativePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open cumulative artifact for append: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("append batch to cumulative artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close cumulative artifact: %w", err)
	}
	return nil
}

// ReadCumulative streams every parseable record from the cumulative
// artifact, invoking fn with the raw line number for diagnostics. Lines that
// are not valid JSON are reported through the logger and skipped.
func (s *Store) ReadCumulative(fn func(lineNo int, rec records.Record)) error {
	f, err := os.Open(s.cumulativePath)
	if err != nil {
		return fmt.Errorf("open cumulative artifact: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec records.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			s.logger.Warn("skipping malformed cumulative line",
				zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		fn(lineNo, rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan cumulative artifact: %w", err)
	}
	return nil
}
