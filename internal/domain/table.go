package domain

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
)

//go:embed fileslist.csv
var defaultTable []byte

// tableRow is one "year,archive" line of the reference file.
type tableRow struct {
	Year    int    `csv:"year"`
	Archive string `csv:"archive"`
}

// YearTable maps a data year to its archive file name. It is read-only once
// loaded.
type YearTable struct {
	archives map[int]string
}

// DefaultTable returns the table packaged with the binary.
func DefaultTable() (*YearTable, error) {
	return ParseTable(bytes.NewReader(defaultTable))
}

// LoadTable reads a table from path, or the packaged table when path is empty.
func LoadTable(path string) (*YearTable, error) {
	if path == "" {
		return DefaultTable()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive table: %w", err)
	}
	defer f.Close()
	return ParseTable(f)
}

// ParseTable decodes headerless "year,archive" lines. Lines starting with '#'
// are comments. A later line for the same year replaces an earlier one.
func ParseTable(r io.Reader) (*YearTable, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 2

	dec, err := csvutil.NewDecoder(cr, "year", "archive")
	if err != nil {
		return nil, fmt.Errorf("archive table: %w", err)
	}

	t := &YearTable{archives: make(map[int]string)}
	for {
		var row tableRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("archive table: %w", err)
		}
		name := strings.TrimSpace(row.Archive)
		if name == "" {
			return nil, fmt.Errorf("archive table: year %d has no archive name", row.Year)
		}
		t.archives[row.Year] = name
	}
	return t, nil
}

// Len reports how many years the table maps.
func (t *YearTable) Len() int { return len(t.archives) }

// Archive returns the archive name for year.
func (t *YearTable) Archive(year int) (string, bool) {
	name, ok := t.archives[year]
	return name, ok
}

// Locate returns the archive names for start..end inclusive, in ascending year
// order. A zero year counts as missing. Years without a table entry are
// reported as ItemErrors next to the names that were found, so the caller can
// still fetch the rest of the range.
func (t *YearTable) Locate(start, end int) ([]string, error) {
	switch {
	case start == 0 || end == 0:
		return nil, fmt.Errorf("%w: start and end year are required", ErrConfig)
	case start > end:
		return nil, fmt.Errorf("%w: start year %d is after end year %d", ErrConfig, start, end)
	}

	names := make([]string, 0, end-start+1)
	var missing ItemErrors
	for year := start; year <= end; year++ {
		name, ok := t.archives[year]
		if !ok {
			missing.Add("locate", strconv.Itoa(year), ErrYearNotMapped)
			continue
		}
		names = append(names, name)
	}
	return names, missing.Err()
}
