package table

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the value type shared by all cells of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

var (
	ErrLengthMismatch  = errors.New("column length mismatch")
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Column is a named, typed vector of cells.
// Numeric cells use NaN for missing values. Categorical cells use the Null
// mask, which is nil when no value is missing.
type Column struct {
	Name   string
	Kind   Kind
	Floats []float64
	Texts  []string
	Null   []bool
}

// NewNumeric creates a numeric column. NaN values are treated as missing.
func NewNumeric(name string, vals []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Floats: vals}
}

// NewCategorical creates a categorical column. The null mask may be nil.
func NewCategorical(name string, vals []string, null []bool) *Column {
	c := &Column{Name: name, Kind: Categorical, Texts: vals}
	for _, n := range null {
		if n {
			c.Null = null
			break
		}
	}
	return c
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Texts)
}

// IsMissing reports whether cell i holds no value.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return c.Null != nil && c.Null[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// String renders cell i; missing cells render as an empty string.
func (c *Column) String(i int) string {
	if c.IsMissing(i) {
		return ""
	}
	if c.Kind == Numeric {
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	}
	return c.Texts[i]
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Floats != nil {
		out.Floats = append([]float64(nil), c.Floats...)
	}
	if c.Texts != nil {
		out.Texts = append([]string(nil), c.Texts...)
	}
	if c.Null != nil {
		out.Null = append([]bool(nil), c.Null...)
	}
	return out
}

// take returns a new column holding the cells at the given row indexes.
func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Kind == Numeric {
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
		return out
	}
	out.Texts = make([]string, len(rows))
	var null []bool
	for i, r := range rows {
		out.Texts[i] = c.Texts[r]
		if c.IsMissing(r) {
			if null == nil {
				null = make([]bool, len(rows))
			}
			null[i] = true
		}
	}
	out.Null = null
	return out
}

// Table is an ordered set of equally long columns.
// Tables are treated as immutable: every operation returns a new table.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a table from columns, which must share a length and have
// unique names. Columns are used as given, not copied.
func New(cols ...*Column) (*Table, error) {
	t := &Table{
		cols:  make([]*Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if i == 0 {
			t.rows = c.Len()
		}
		if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: %s has %d rows, expected %d", ErrLengthMismatch, c.Name, c.Len(), t.rows)
		}
		if _, ok := t.index[c.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(cols ...*Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) NumRows() int { return t.rows }
func (t *Table) NumCols() int { return len(t.cols) }

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Col returns the i-th column.
func (t *Table) Col(i int) *Column { return t.cols[i] }

// Columns returns the columns in order. The slice is a copy; the columns
// are shared and must not be modified.
func (t *Table) Columns() []*Column {
	return append([]*Column(nil), t.cols...)
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// NamesOf returns the names of all columns of the given kind, in order.
func (t *Table) NamesOf(k Kind) []string {
	var out []string
	for _, c := range t.cols {
		if c.Kind == k {
			out = append(out, c.Name)
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Clone()
	}
	return MustNew(cols...)
}

// Replace returns a table where the named columns are swapped for the
// given ones, keeping their positions. Columns not present are appended.
func (t *Table) Replace(cols ...*Column) (*Table, error) {
	next := make([]*Column, len(t.cols))
	copy(next, t.cols)
	for _, c := range cols {
		if i, ok := t.index[c.Name]; ok {
			next[i] = c
			continue
		}
		next = append(next, c)
	}
	return New(next...)
}

// MustReplace is Replace for columns derived from t, which always share
// its row count. It panics otherwise.
func (t *Table) MustReplace(cols ...*Column) *Table {
	out, err := t.Replace(cols...)
	if err != nil {
		panic(err)
	}
	return out
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	next := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !skip[c.Name] {
			next = append(next, c)
		}
	}
	out := MustNew(next...)
	out.rows = t.rows
	return out
}

// Take returns a table holding only the given rows, in the given order.
func (t *Table) Take(rows []int) *Table {
	next := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		next[i] = c.take(rows)
	}
	out := MustNew(next...)
	out.rows = len(rows)
	return out
}

// RowKey renders row i as a single string usable for equality checks.
// Missing cells are encoded distinctly from any present value and negative
// zero renders as zero.
func (t *Table) RowKey(i int) string {
	var b strings.Builder
	for j, c := range t.cols {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		switch {
		case c.IsMissing(i):
			b.WriteByte(0x00)
		case c.Kind == Numeric && c.Floats[i] == 0:
			// -0 and 0 are the same value
			b.WriteByte('0')
		default:
			b.WriteString(c.String(i))
		}
	}
	return b.String()
}

// Row returns the rendered cells of row i.
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.cols))
	for j, c := range t.cols {
		out[j] = c.String(i)
	}
	return out
}
