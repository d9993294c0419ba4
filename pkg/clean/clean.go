package clean

import (
	"math"
	"strconv"

	"github.com/mchmarny/riskprep/pkg/stats"
	"github.com/mchmarny/riskprep/pkg/table"
)

const (
	DefaultLowerPercentile = 1.0
	DefaultUpperPercentile = 99.0
)

// Imputation describes the fill applied to one column.
type Imputation struct {
	Column  string `json:"column" yaml:"column"`
	Kind    string `json:"kind" yaml:"kind"`
	Value   string `json:"value" yaml:"value"`
	Missing int    `json:"missing" yaml:"missing"`
}

// ImputeReport lists the imputed columns and the columns that had no
// values to impute from.
type ImputeReport struct {
	Imputed []Imputation `json:"imputed" yaml:"imputed"`
	Skipped []string     `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Impute fills missing cells with the column median (numeric) or the most
// frequent value (categorical). Columns without any value are left as is.
func Impute(t *table.Table) (*table.Table, ImputeReport) {
	var (
		report ImputeReport
		fills  []*table.Column
	)

	for _, c := range t.Columns() {
		missing := c.MissingCount()
		if missing == 0 {
			continue
		}

		switch c.Kind {
		case table.Numeric:
			med := stats.Median(c.Floats)
			if math.IsNaN(med) {
				report.Skipped = append(report.Skipped, c.Name)
				continue
			}
			next := c.Clone()
			for i, v := range next.Floats {
				if math.IsNaN(v) {
					next.Floats[i] = med
				}
			}
			fills = append(fills, next)
			report.Imputed = append(report.Imputed, Imputation{
				Column:  c.Name,
				Kind:    c.Kind.String(),
				Value:   strconv.FormatFloat(med, 'g', -1, 64),
				Missing: missing,
			})

		case table.Categorical:
			mode, ok := stats.Mode(presentTexts(c))
			if !ok {
				report.Skipped = append(report.Skipped, c.Name)
				continue
			}
			texts := make([]string, c.Len())
			for i := range texts {
				if c.IsMissing(i) {
					texts[i] = mode
					continue
				}
				texts[i] = c.Texts[i]
			}
			fills = append(fills, table.NewCategorical(c.Name, texts, nil))
			report.Imputed = append(report.Imputed, Imputation{
				Column:  c.Name,
				Kind:    c.Kind.String(),
				Value:   mode,
				Missing: missing,
			})
		}
	}

	if len(fills) == 0 {
		return t, report
	}
	return t.MustReplace(fills...), report
}

// DropDuplicates removes rows identical to an earlier row across all
// columns. Missing cells compare equal to each other. It returns the new
// table and the number of rows removed.
func DropDuplicates(t *table.Table) (*table.Table, int) {
	seen := make(map[string]struct{}, t.NumRows())
	keep := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		k := t.RowKey(i)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	removed := t.NumRows() - len(keep)
	if removed == 0 {
		return t, 0
	}
	return t.Take(keep), removed
}

// ClipOptions control outlier clipping.
type ClipOptions struct {
	Enabled bool
	Lower   float64
	Upper   float64
}

// DefaultClipOptions clip at the 1st and 99th percentiles.
func DefaultClipOptions() ClipOptions {
	return ClipOptions{Enabled: true, Lower: DefaultLowerPercentile, Upper: DefaultUpperPercentile}
}

// Bounds are the clip limits applied to one column.
type Bounds struct {
	Column  string  `json:"column" yaml:"column"`
	Lower   float64 `json:"lower" yaml:"lower"`
	Upper   float64 `json:"upper" yaml:"upper"`
	Clipped int     `json:"clipped" yaml:"clipped"`
}

// ClipOutliers clamps every numeric column into its [Lower, Upper]
// percentile range. Missing values stay missing.
func ClipOutliers(t *table.Table, opt ClipOptions) (*table.Table, []Bounds) {
	if !opt.Enabled {
		return t, nil
	}

	var (
		bounds []Bounds
		next   []*table.Column
	)
	for _, c := range t.Columns() {
		if c.Kind != table.Numeric {
			continue
		}
		lo := stats.Percentile(c.Floats, opt.Lower)
		hi := stats.Percentile(c.Floats, opt.Upper)
		if math.IsNaN(lo) || math.IsNaN(hi) {
			continue
		}

		clipped := c.Clone()
		n := 0
		for i, v := range clipped.Floats {
			switch {
			case math.IsNaN(v):
			case v < lo:
				clipped.Floats[i] = lo
				n++
			case v > hi:
				clipped.Floats[i] = hi
				n++
			}
		}
		bounds = append(bounds, Bounds{Column: c.Name, Lower: lo, Upper: hi, Clipped: n})
		next = append(next, clipped)
	}

	if len(next) == 0 {
		return t, bounds
	}
	return t.MustReplace(next...), bounds
}

func presentTexts(c *table.Column) []string {
	out := make([]string, 0, c.Len())
	for i, v := range c.Texts {
		if !c.IsMissing(i) {
			out = append(out, v)
		}
	}
	return out
}
