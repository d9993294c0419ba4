package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var missingMarkers = map[string]bool{
	"":     true,
	"?":    true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
}

// IsMissingMarker reports whether a raw cell denotes a missing value.
func IsMissingMarker(s string) bool {
	return missingMarkers[strings.TrimSpace(s)]
}

// FromRecords builds a table from a header and string records, inferring
// each column's kind: a column is numeric when every non-missing cell
// parses as a float, categorical otherwise. Short records are padded with
// missing cells.
func FromRecords(header []string, records [][]string) (*Table, error) {
	cols := make([]*Column, len(header))
	for j, name := range header {
		raw := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = strings.TrimSpace(rec[j])
			}
		}
		cols[j] = InferColumn(strings.TrimSpace(name), raw)
	}
	t, err := New(cols...)
	if err != nil {
		return nil, fmt.Errorf("building table: %w", err)
	}
	if len(cols) == 0 {
		t.rows = len(records)
	}
	return t, nil
}

// InferColumn turns raw cells into a numeric column when possible and a
// categorical one otherwise.
func InferColumn(name string, raw []string) *Column {
	floats := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		if IsMissingMarker(s) {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			numeric = false
			break
		}
		floats[i] = v
	}
	if numeric {
		return NewNumeric(name, floats)
	}

	texts := make([]string, len(raw))
	null := make([]bool, len(raw))
	for i, s := range raw {
		if IsMissingMarker(s) {
			null[i] = true
			continue
		}
		texts[i] = s
	}
	return NewCategorical(name, texts, null)
}
