package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	CSVExt  = ".csv"
	JSONExt = ".json"
)

// ExtractedName strips the compression suffix (the last extension) from an
// archive name.
func ExtractedName(archive string) string {
	return strings.TrimSuffix(archive, filepath.Ext(archive))
}

// BatchFileName names batch index of source. Embedding the whole source name
// keeps batches of different sources apart: "a.csv0.json", "b.csv0.json".
func BatchFileName(source string, index int) string {
	return source + strconv.Itoa(index) + JSONExt
}

// BatchFormat selects how a batch is serialized.
type BatchFormat string

const (
	// FormatArray writes one JSON array of row objects per batch file. This is
	// the format the loader reads.
	FormatArray BatchFormat = "array"

	// FormatLines writes one JSON object per line, keyed positionally by the
	// requested columns. The loader rejects these files; they are meant for
	// tools that read JSON lines.
	FormatLines BatchFormat = "lines"
)

// ParseBatchFormat accepts "array", "lines" or "" (array).
func ParseBatchFormat(s string) (BatchFormat, error) {
	switch BatchFormat(s) {
	case "", FormatArray:
		return FormatArray, nil
	case FormatLines:
		return FormatLines, nil
	}
	return "", fmt.Errorf("%w: unknown batch format %q", ErrConfig, s)
}

// CleanTarget selects the directories the cleaner empties.
type CleanTarget struct {
	Landing    bool
	Extraction bool
}

// ParseCleanTarget maps the cleanup selector: "load" clears the landing
// directory, "extract" the extraction directory, "" both.
func ParseCleanTarget(s string) (CleanTarget, error) {
	switch s {
	case "":
		return CleanTarget{Landing: true, Extraction: true}, nil
	case "load":
		return CleanTarget{Landing: true}, nil
	case "extract":
		return CleanTarget{Extraction: true}, nil
	}
	return CleanTarget{}, fmt.Errorf("%w: unknown cleanup target %q (want load or extract)", ErrConfig, s)
}

// SplitColumns parses a comma separated column list. An empty string selects
// all columns.
func SplitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}
