package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/riskprep/pkg/table"
)

func labels(t *testing.T, tbl *table.Table, name string) []string {
	t.Helper()
	c, ok := tbl.Column(name)
	require.True(t, ok)
	require.Equal(t, table.Categorical, c.Kind)
	return c.Texts
}

func TestLabel_Scoring(t *testing.T) {
	in := table.MustNew(
		table.NewNumeric("r", []float64{1, 2, 3, -1, 4}),
		table.NewNumeric("class", []float64{0, 0, 0, 0, 1}),
	)

	out, res, err := Label(in, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"r", "class", DefaultLabel}, out.Names())
	assert.Equal(t, []string{"r"}, res.KeyRatios)
	assert.Equal(t, "class", res.Target)
	assert.Equal(t, 1, res.Bankrupt)

	// normalized scores are ~[0 0 0 .5 1]; non-bankrupt quantiles are 0 and .275
	require.NotNil(t, res.Thresholds)
	assert.InDelta(t, 0.0, res.Thresholds.Medium, 1e-6)
	assert.InDelta(t, 0.275, res.Thresholds.High, 1e-6)

	assert.Equal(t, []string{Medium, Medium, Medium, High, High}, labels(t, out, DefaultLabel))
	assert.Equal(t, map[string]int{Medium: 3, High: 2}, res.Counts)

	_, ok := in.Column(DefaultLabel)
	assert.False(t, ok)
}

func TestLabel_LeverageAndOtherRoles(t *testing.T) {
	in := table.MustNew(
		table.NewNumeric("profit", []float64{1, 1, 1, 1, 1, 1, 1, 1}),
		table.NewNumeric("debt", []float64{1, 1, 1, 1, 1, 1, 1, 9}),
		table.NewNumeric("liquidity", []float64{5, 5, 5, 5, 5, 5, 1, 5}),
		table.NewNumeric("class", []float64{0, 0, 0, 0, 0, 0, 0, 0}),
	)

	out, res, err := Label(in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"profit", "debt", "liquidity"}, res.KeyRatios)

	got := labels(t, out, DefaultLabel)
	assert.Equal(t, High, got[7], "high leverage")
	assert.Equal(t, High, got[6], "low liquidity")
	assert.Equal(t, Medium, got[0])
}

func TestLabel_BankruptAlwaysHigh(t *testing.T) {
	in := table.MustNew(
		table.NewNumeric("r", []float64{-5, -4, 10, 11, 12, 13}),
		table.NewCategorical("class", []string{"b'0'", "1", " 1.0 ", "True", "0", "False"}, nil),
	)
	out, res, err := Label(in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Bankrupt)

	got := labels(t, out, DefaultLabel)
	assert.Equal(t, High, got[1])
	assert.Equal(t, High, got[2])
	assert.Equal(t, High, got[3])
}

func TestLabel_AllBankrupt(t *testing.T) {
	in := table.MustNew(
		table.NewNumeric("r", []float64{1, 2}),
		table.NewNumeric("class", []float64{1, 1}),
	)
	out, res, err := Label(in, DefaultOptions())
	require.NoError(t, err)
	assert.Nil(t, res.Thresholds)
	assert.Equal(t, []string{High, High}, labels(t, out, DefaultLabel))
}

func TestLabel_InferredTarget(t *testing.T) {
	in := table.MustNew(
		table.NewNumeric("r", []float64{1, 2, 3}),
		table.NewNumeric("flag", []float64{0, 1, 0}),
	)
	_, res, err := Label(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, "flag", res.Target)
	assert.Equal(t, []string{"r"}, res.KeyRatios)
}

func TestLabel_NoTarget(t *testing.T) {
	in := table.MustNew(table.NewNumeric("r", []float64{1, 2, 3}))
	_, _, err := Label(in, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestLabel_MissingKeyValues(t *testing.T) {
	nan := math.NaN()
	in := table.MustNew(
		table.NewNumeric("r", []float64{nan, 1, 2, 3}),
		table.NewNumeric("empty", []float64{nan, nan, nan, nan}),
		table.NewNumeric("class", []float64{0, 0, 0, nan}),
	)
	out, res, err := Label(in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Bankrupt)
	assert.Len(t, labels(t, out, DefaultLabel), 4)
}

func TestLabel_ReplacesExistingLabel(t *testing.T) {
	in := table.MustNew(
		table.NewCategorical(DefaultLabel, []string{"x", "y"}, nil),
		table.NewNumeric("r", []float64{1, 2}),
		table.NewNumeric("class", []float64{0, 1}),
	)
	out, _, err := Label(in, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"r", "class", DefaultLabel}, out.Names())
}

func TestKeyRatios(t *testing.T) {
	in := table.MustNew(
		table.NewNumeric("a", []float64{1}),
		table.NewNumeric("_score", []float64{1}),
		table.NewNumeric("b", []float64{1}),
		table.NewNumeric("class", []float64{1}),
		table.NewCategorical("s", []string{"x"}, nil),
		table.NewNumeric("c", []float64{1}),
		table.NewNumeric("d", []float64{1}),
	)

	tests := []struct {
		name string
		opt  Options
		want []string
	}{
		{"positional", Options{}, []string{"a", "b", "c", "d"}},
		{"capped", Options{MaxKeyRatios: 2}, []string{"a", "b"}},
		{"explicit leverage", Options{Leverage: "d"}, []string{"a", "d", "b", "c"}},
		{"explicit profitability", Options{Profitability: "c"}, []string{"c", "a", "b", "d"}},
		{"both", Options{Profitability: "d", Leverage: "c"}, []string{"d", "c", "a", "b"}},
		{"unknown role ignored", Options{Profitability: "zz"}, []string{"a", "b", "c", "d"}},
		{"categorical role ignored", Options{Profitability: "s"}, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyRatios(in, "class", tt.opt.withDefaults()))
		})
	}
}
