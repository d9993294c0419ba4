package split

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/riskprep/pkg/table"
)

func sample(n int, labels func(i int) string) *table.Table {
	ids := make([]float64, n)
	lbl := make([]string, n)
	for i := range ids {
		ids[i] = float64(i)
		lbl[i] = labels(i)
	}
	return table.MustNew(
		table.NewNumeric("id", ids),
		table.NewCategorical("risk_level", lbl, nil),
	)
}

func TestTrainTest_Sizes(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		testSize  float64
		wantTrain int
		wantTest  int
	}{
		{"exact", 10, 0.3, 7, 3},
		{"rounds test up", 11, 0.3, 7, 4},
		{"single row", 1, 0.3, 0, 1},
		{"empty", 0, 0.3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := TrainTest(sample(tt.rows, func(int) string { return "Low" }), Options{TestSize: tt.testSize, Seed: 1})
			require.NoError(t, err)
			assert.Equal(t, Sizes{Train: tt.wantTrain, Test: tt.wantTest}, res.Sizes())
			assert.Equal(t, tt.wantTrain, res.Train.NumRows())
			assert.Equal(t, tt.wantTest, res.Test.NumRows())
		})
	}
}

func TestTrainTest_PartitionsAllRows(t *testing.T) {
	res, err := TrainTest(sample(50, func(int) string { return "Low" }), DefaultOptions())
	require.NoError(t, err)

	all := append(append([]int(nil), res.TrainIndex...), res.TestIndex...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	id, _ := res.Test.Column("id")
	for i, src := range res.TestIndex {
		assert.Equal(t, float64(src), id.Floats[i])
	}
	assert.Equal(t, []string{"id", "risk_level"}, res.Train.Names())
}

func TestTrainTest_Deterministic(t *testing.T) {
	tbl := sample(40, func(int) string { return "Low" })
	a, err := TrainTest(tbl, DefaultOptions())
	require.NoError(t, err)
	b, err := TrainTest(tbl, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.TestIndex, b.TestIndex)

	c, err := TrainTest(tbl, Options{TestSize: DefaultTestSize, Seed: 7})
	require.NoError(t, err)
	assert.NotEqual(t, a.TestIndex, c.TestIndex)
}

func TestTrainTest_Stratified(t *testing.T) {
	label := func(i int) string {
		switch {
		case i < 60:
			return "Low"
		case i < 90:
			return "Medium"
		default:
			return "High"
		}
	}
	opt := DefaultOptions()
	opt.Stratify = "risk_level"

	res, err := TrainTest(sample(100, label), opt)
	require.NoError(t, err)
	assert.Equal(t, Sizes{Train: 70, Test: 30}, res.Sizes())

	counts := map[string]int{}
	lvl, _ := res.Test.Column("risk_level")
	for _, v := range lvl.Texts {
		counts[v]++
	}
	assert.Equal(t, map[string]int{"Low": 18, "Medium": 9, "High": 3}, counts)
}

func TestTrainTest_StratifiedRemainders(t *testing.T) {
	label := func(i int) string {
		if i%2 == 0 {
			return "a"
		}
		return "b"
	}
	opt := Options{TestSize: 0.3, Seed: 3, Stratify: "risk_level"}
	res, err := TrainTest(sample(7, label), opt)
	require.NoError(t, err)
	assert.Equal(t, 3, len(res.TestIndex))
	assert.Equal(t, 4, len(res.TrainIndex))
}

func TestTrainTest_Errors(t *testing.T) {
	tbl := sample(5, func(int) string { return "Low" })
	for _, ts := range []float64{0, 1, -0.1, 1.5} {
		_, err := TrainTest(tbl, Options{TestSize: ts})
		assert.ErrorIs(t, err, ErrInvalidTestSize)
	}

	_, err := TrainTest(tbl, Options{TestSize: 0.3, Stratify: "nope"})
	assert.Error(t, err)
}
