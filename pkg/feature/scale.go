package feature

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mchmarny/riskprep/pkg/stats"
	"github.com/mchmarny/riskprep/pkg/table"
)

var (
	ErrColumnMismatch = errors.New("table does not match fitted columns")
	ErrNotFitted      = errors.New("scaler has not been fitted")
)

// ScalerStats holds the fitted mean and population standard deviation of
// each scaled column, in column order.
type ScalerStats struct {
	Columns []string  `json:"columns" yaml:"columns"`
	Mean    []float64 `json:"mean" yaml:"mean"`
	Std     []float64 `json:"std" yaml:"std"`
}

// Validate checks the stats are internally consistent.
func (s *ScalerStats) Validate() error {
	if s == nil || len(s.Columns) == 0 {
		return ErrNotFitted
	}
	if len(s.Mean) != len(s.Columns) || len(s.Std) != len(s.Columns) {
		return fmt.Errorf("scaler stats have %d columns, %d means and %d deviations",
			len(s.Columns), len(s.Mean), len(s.Std))
	}
	return nil
}

// Fit computes per-column statistics over the given numeric columns of t.
// Missing values are ignored; a zero or undefined deviation becomes 1.
func Fit(t *table.Table, columns []string) (*ScalerStats, error) {
	s := &ScalerStats{
		Columns: append([]string(nil), columns...),
		Mean:    make([]float64, len(columns)),
		Std:     make([]float64, len(columns)),
	}
	for i, name := range columns {
		c, ok := t.Column(name)
		if !ok || c.Kind != table.Numeric {
			return nil, fmt.Errorf("%w: %s is not a numeric column", ErrColumnMismatch, name)
		}
		mean, std := stats.MeanStd(c.Floats)
		if math.IsNaN(mean) {
			mean = 0
		}
		if math.IsNaN(std) || std == 0 {
			std = 1
		}
		s.Mean[i] = mean
		s.Std[i] = std
	}
	return s, nil
}

// Transform standardizes the fitted columns of t into a rows x columns
// matrix. Missing values stay NaN. An empty table yields a nil matrix.
func (s *ScalerStats) Transform(t *table.Table) (*mat.Dense, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	src := make([][]float64, len(s.Columns))
	for j, name := range s.Columns {
		c, ok := t.Column(name)
		if !ok || c.Kind != table.Numeric {
			return nil, fmt.Errorf("%w: missing %s", ErrColumnMismatch, name)
		}
		src[j] = c.Floats
	}

	rows := t.NumRows()
	if rows == 0 {
		return nil, nil
	}
	m := mat.NewDense(rows, len(s.Columns), nil)
	for j, vals := range src {
		for i, v := range vals {
			m.Set(i, j, (v-s.Mean[j])/s.Std[j])
		}
	}
	return m, nil
}

// Scaled holds both transformed partitions and the stats used.
type Scaled struct {
	Stats *ScalerStats
	Train *mat.Dense
	Test  *mat.Dense
}

// Scale fits on train (unless stats are supplied) and transforms both
// partitions with the same statistics. columns selects the features to
// scale; when empty, every numeric column of train is used.
func Scale(train, test *table.Table, columns []string, fitted *ScalerStats) (*Scaled, error) {
	var err error
	s := fitted
	if s == nil {
		if len(columns) == 0 {
			columns = train.NamesOf(table.Numeric)
		}
		if s, err = Fit(train, columns); err != nil {
			return nil, fmt.Errorf("fitting scaler: %w", err)
		}
	}

	out := &Scaled{Stats: s}
	if out.Train, err = s.Transform(train); err != nil {
		return nil, fmt.Errorf("scaling training data: %w", err)
	}
	if test != nil {
		if out.Test, err = s.Transform(test); err != nil {
			return nil, fmt.Errorf("scaling test data: %w", err)
		}
	}
	return out, nil
}

// ToTable turns a scaled matrix back into numeric columns named after the
// fitted columns.
func (s *ScalerStats) ToTable(m *mat.Dense) (*table.Table, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		cols := make([]*table.Column, len(s.Columns))
		for j, name := range s.Columns {
			cols[j] = table.NewNumeric(name, []float64{})
		}
		return table.New(cols...)
	}
	_, width := m.Dims()
	if width != len(s.Columns) {
		return nil, fmt.Errorf("%w: matrix has %d columns, expected %d", ErrColumnMismatch, width, len(s.Columns))
	}
	cols := make([]*table.Column, width)
	for j, name := range s.Columns {
		cols[j] = table.NewNumeric(name, mat.Col(nil, j, m))
	}
	return table.New(cols...)
}
