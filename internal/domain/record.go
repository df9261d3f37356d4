package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// nullTokens are the field spellings read as "no value". The list follows the
// NA markers common spreadsheet and dataframe tooling emits.
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNull reports whether a CSV field value stands for a missing value.
func IsNull(v string) bool {
	_, ok := nullTokens[v]
	return ok
}

// Field is one column of a row.
type Field struct {
	Name  string
	Value string
}

// Record is a row projected to the selected, non-null columns. Field order is
// kept when the record is serialized.
type Record []Field

// NewRecord pairs names with values and drops null values. Names beyond the
// end of values are treated as missing.
func NewRecord(names []string, values []string) Record {
	rec := make(Record, 0, len(names))
	for i, name := range names {
		if i >= len(values) || IsNull(values[i]) {
			continue
		}
		rec = append(rec, Field{Name: name, Value: values[i]})
	}
	return rec
}

// NumericColumns returns the columns whose every non-null value in recs is a
// number that fits an int64 or a finite float64. A column written as a number
// in one record of the set is a number in all of them.
func NumericColumns(recs []Record) map[string]bool {
	numeric := make(map[string]bool)
	for _, rec := range recs {
		for _, f := range rec {
			ok, seen := numeric[f.Name]
			if seen && !ok {
				continue
			}
			numeric[f.Name] = isNumeric(f.Value)
		}
	}
	for name, ok := range numeric {
		if !ok {
			delete(numeric, name)
		}
	}
	return numeric
}

// Encode writes the record as a JSON object in field order. Fields named in
// numeric are written as numbers with the source text unchanged; all others
// are strings.
func (r Record) Encode(numeric map[string]bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if numeric[f.Name] {
			buf.WriteString(f.Value)
			continue
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON writes a lone record, typing each field by its own value.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.Encode(NumericColumns([]Record{r}))
}

// isNumeric reports whether s is a JSON number that a document store keeps
// without loss: integers must fit an int64, other forms a finite float64.
func isNumeric(s string) bool {
	if !isJSONNumber(s) {
		return false
	}
	if !strings.ContainsAny(s, ".eE") {
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isJSONNumber follows the number grammar of RFC 8259: an optional minus, an
// integer part without leading zeros, an optional fraction and exponent.
func isJSONNumber(s string) bool {
	i, n := 0, len(s)
	if i < n && s[i] == '-' {
		i++
	}
	switch {
	case i < n && s[i] == '0':
		i++
	case i < n && s[i] >= '1' && s[i] <= '9':
		for i < n && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < n && s[i] == '.' {
		i++
		if i == n || !isDigit(s[i]) {
			return false
		}
		for i < n && isDigit(s[i]) {
			i++
		}
	}
	if i < n && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < n && (s[i] == '+' || s[i] == '-') {
			i++
		}
		if i == n || !isDigit(s[i]) {
			return false
		}
		for i < n && isDigit(s[i]) {
			i++
		}
	}
	return i == n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Batch is the content of one JSON batch file handed to a sink.
type Batch struct {
	Source string            // batch file name
	Docs   []json.RawMessage // one JSON object per record
}
