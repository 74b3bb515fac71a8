// Package history persists collection runs: an append-only CSV series for
// trend analysis and a latest.json holding the most recent full snapshot.
package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/communitypulse/pulse/internal/community"
)

const (
	// SeriesFile is the CSV time series, one row per collection run.
	SeriesFile = "community_metrics.csv"
	// LatestFile holds the most recent snapshot as indented JSON.
	LatestFile = "latest.json"

	dateColumn = "date"
	// DateLayout formats the row timestamp. Timestamps are always UTC, so
	// the zone designator is a literal Z.
	DateLayout = "2006-01-02T15:04:05Z"
)

// Store reads and writes the history files under a data directory.
type Store struct {
	dir    string
	logger zerolog.Logger
}

func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the data directory the store operates on.
func (s *Store) Dir() string { return s.dir }

// SeriesPath returns the full path of the CSV series file.
func (s *Store) SeriesPath() string { return filepath.Join(s.dir, SeriesFile) }

// LatestPath returns the full path of the latest-snapshot file.
func (s *Store) LatestPath() string { return filepath.Join(s.dir, LatestFile) }

// Append projects snap onto one CSV row and appends it to the series.
//
// The series schema evolves in place: columns the file does not know yet
// trigger a one-time rewrite that backfills every existing row with the new
// columns' sentinels, and columns the file knows but this run does not
// produce (a source disabled since) are padded with sentinels in the new row.
// Existing values are never modified.
func (s *Store) Append(snap *community.Snapshot) error {
	fields := projectRow(snap)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %q: %w", s.dir, err)
	}

	path := s.SeriesPath()
	header, rows, err := readSeries(path)
	if err != nil {
		return err
	}

	if header == nil {
		return s.writeSeries(path, columnsOf(fields), [][]string{rowValues(columnsOf(fields), fields)})
	}

	added := addedColumns(header, fields)
	if len(added) == 0 {
		return s.appendRow(path, rowValues(header, fields))
	}

	newHeader := append(append([]string{}, header...), columnsOf(added)...)
	s.logger.Info().Strs("columns", columnsOf(added)).
		Msg("history: series schema extended, rewriting with backfill")

	backfilled := make([][]string, 0, len(rows)+1)
	for _, row := range rows {
		row = append(row, sentinelsOf(added)...)
		backfilled = append(backfilled, row)
	}
	backfilled = append(backfilled, rowValues(newHeader, fields))

	return s.writeSeries(path, newHeader, backfilled)
}

// WriteLatest overwrites the latest-snapshot file atomically.
func (s *Store) WriteLatest(snap *community.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %q: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	data = append(data, '\n')

	return atomicWrite(s.LatestPath(), data)
}

// ReadLatest loads the most recently written snapshot.
func (s *Store) ReadLatest() (*community.Snapshot, error) {
	data, err := os.ReadFile(s.LatestPath())
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", LatestFile, err)
	}
	var snap community.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", LatestFile, err)
	}
	return &snap, nil
}

// ReadSeries returns the series header and all data rows.
func (s *Store) ReadSeries() ([]string, [][]string, error) {
	header, rows, err := readSeries(s.SeriesPath())
	if err != nil {
		return nil, nil, err
	}
	if header == nil {
		return nil, nil, fmt.Errorf("no series at %s", s.SeriesPath())
	}
	return header, rows, nil
}

// Tail returns the header and the last n data rows (all rows if fewer).
func (s *Store) Tail(n int) ([]string, [][]string, error) {
	header, rows, err := s.ReadSeries()
	if err != nil {
		return nil, nil, err
	}
	if n > 0 && len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return header, rows, nil
}

// projectRow flattens a snapshot into ordered fields, date first.
func projectRow(snap *community.Snapshot) []community.Field {
	fields := []community.Field{{
		Column: dateColumn,
		Value:  snap.LastUpdated.UTC().Format(DateLayout),
	}}
	for _, rec := range snap.Records() {
		fields = append(fields, rec.Fields()...)
	}
	return fields
}

func columnsOf(fields []community.Field) []string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
	}
	return cols
}

func sentinelsOf(fields []community.Field) []string {
	vals := make([]string, len(fields))
	for i, f := range fields {
		vals[i] = f.Sentinel
	}
	return vals
}

// addedColumns returns the fields whose columns the on-disk header lacks, in
// field order.
func addedColumns(header []string, fields []community.Field) []community.Field {
	known := make(map[string]struct{}, len(header))
	for _, col := range header {
		known[col] = struct{}{}
	}
	var added []community.Field
	for _, f := range fields {
		if _, ok := known[f.Column]; !ok {
			added = append(added, f)
		}
	}
	return added
}

// rowValues orders the row by the given header. Columns this run has no
// value for carry a stale-column sentinel.
func rowValues(header []string, fields []community.Field) []string {
	byCol := make(map[string]string, len(fields))
	for _, f := range fields {
		byCol[f.Column] = f.Value
	}
	row := make([]string, len(header))
	for i, col := range header {
		if v, ok := byCol[col]; ok {
			row[i] = v
			continue
		}
		row[i] = staleSentinel(col)
	}
	return row
}

// staleSentinel is the placeholder for an on-disk column no current record
// produces, typically a source that has since been disabled.
func staleSentinel(column string) string {
	switch {
	case strings.HasSuffix(column, "_status"):
		return string(community.StatusDisabled)
	case strings.HasSuffix(column, "_method"), strings.HasSuffix(column, "_url"),
		strings.HasSuffix(column, "_package"):
		return ""
	default:
		return "0"
	}
}

// readSeries parses the CSV series. A missing file returns a nil header and
// no error.
func readSeries(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows written before a schema extension are shorter

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header of %q: %w", path, err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading %q: %w", path, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// appendRow adds one row to the existing series. The row is encoded into a
// buffer first and flushed in a single write so a crash cannot leave a torn
// line.
func (s *Store) appendRow(path string, row []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding row: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %q for append: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending to %q: %w", path, err)
	}
	return f.Close()
}

// writeSeries writes the full series atomically via a temp file rename.
func (s *Store) writeSeries(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}
	return atomicWrite(path, buf.Bytes())
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %q to %q: %w", tmpName, path, err)
	}
	return nil
}
