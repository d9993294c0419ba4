package feature

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mchmarny/riskprep/pkg/table"
)

// Encoding lists the indicator columns created for one categorical column.
type Encoding struct {
	Column     string   `json:"column" yaml:"column"`
	Indicators []string `json:"indicators" yaml:"indicators"`
}

// Encode expands every categorical column not listed in exclude into one
// 0/1 numeric column per observed category, named <column>_<category>.
// Remaining columns keep their order; indicators are appended per encoded
// column with categories sorted ascending. Missing values encode as all
// zeros. An indicator name that clashes with another column is an error.
func Encode(t *table.Table, exclude ...string) (*table.Table, []Encoding, error) {
	var targets []*table.Column
	for _, c := range t.Columns() {
		if c.Kind == table.Categorical && !slices.Contains(exclude, c.Name) {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return t, nil, nil
	}

	drop := make([]string, len(targets))
	for i, c := range targets {
		drop[i] = c.Name
	}
	base := t.Drop(drop...)

	var (
		cols      = base.Columns()
		encodings []Encoding
	)
	for _, c := range targets {
		enc := Encoding{Column: c.Name}
		for _, cat := range categories(c) {
			name := c.Name + "_" + cat
			vals := make([]float64, c.Len())
			for i := range vals {
				if !c.IsMissing(i) && c.Texts[i] == cat {
					vals[i] = 1
				}
			}
			cols = append(cols, table.NewNumeric(name, vals))
			enc.Indicators = append(enc.Indicators, name)
		}
		encodings = append(encodings, enc)
	}

	out, err := table.New(cols...)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding categorical columns: %w", err)
	}
	return out, encodings, nil
}

func categories(c *table.Column) []string {
	seen := make(map[string]struct{})
	for i, v := range c.Texts {
		if !c.IsMissing(i) {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
