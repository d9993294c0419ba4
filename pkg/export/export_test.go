package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/mchmarny/riskprep/pkg/feature"
	"github.com/mchmarny/riskprep/pkg/pipeline"
	"github.com/mchmarny/riskprep/pkg/risk"
	"github.com/mchmarny/riskprep/pkg/table"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	n := 20
	a := make([]float64, n)
	b := make([]float64, n)
	class := make([]float64, n)
	for i := range a {
		a[i] = float64(i%7) - 2
		b[i] = math.Sqrt(float64(i + 1))
		if i%5 == 0 {
			class[i] = 1
		}
	}
	in := table.MustNew(
		table.NewNumeric("a", a),
		table.NewNumeric("b", b),
		table.NewNumeric("class", class),
	)
	res, err := pipeline.Run(in, pipeline.DefaultOptions())
	require.NoError(t, err)
	return res
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult(t)

	p, err := Write(res, Options{
		ProcessedDir: filepath.Join(dir, "processed"),
		SplitsDir:    filepath.Join(dir, "splits"),
		ArtifactsDir: filepath.Join(dir, "artifacts"),
		Year:         2,
		LabelColumn:  risk.DefaultLabel,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processed", "polish_companies_bankruptcy_2year_processed.csv"), p.Processed)

	processed := readCSV(t, p.Processed)
	assert.Equal(t, res.Processed.Names(), processed[0])
	assert.Len(t, processed, res.Processed.NumRows()+1)

	train := readCSV(t, p.Train)
	assert.Equal(t, append(append([]string(nil), res.Features...), risk.DefaultLabel), train[0])
	assert.Len(t, train, res.Summary.Split.Train+1)

	test := readCSV(t, p.Test)
	assert.Len(t, test, res.Summary.Split.Test+1)
	assert.Contains(t, risk.Levels, test[1][len(test[1])-1])

	stats, err := ReadScaler(p.Scaler)
	require.NoError(t, err)
	assert.Equal(t, res.Scaled.Stats.Columns, stats.Columns)
	assert.InDeltaSlice(t, res.Scaled.Stats.Mean, stats.Mean, 1e-12)
	assert.InDeltaSlice(t, res.Scaled.Stats.Std, stats.Std, 1e-12)

	b, err := os.ReadFile(p.Features)
	require.NoError(t, err)
	var fl FeatureList
	require.NoError(t, yaml.Unmarshal(b, &fl))
	assert.Equal(t, res.Features, fl.Scaled)
	assert.Equal(t, res.Summary.Features.Retained, fl.Retained)
}

func TestWrite_NilResult(t *testing.T) {
	_, err := Write(nil, Options{})
	assert.Error(t, err)
}

func TestWriteMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 0.5, math.NaN(), -2})
	s := &feature.ScalerStats{Columns: []string{"x", "y"}, Mean: []float64{0, 0}, Std: []float64{1, 1}}

	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, s, m, "risk_level", []string{"Low", "High"}))
	assert.Equal(t, "x,y,risk_level\n1,0.5,Low\n,-2,High\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteMatrix(&buf, s, nil, "", nil))
	assert.Equal(t, "x,y\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteMatrix(&buf, s, nil, "risk_level", nil))
	assert.Equal(t, "x,y,risk_level\n", buf.String())

	narrow := &feature.ScalerStats{Columns: []string{"x"}, Mean: []float64{0}, Std: []float64{1}}
	err := WriteMatrix(&buf, narrow, m, "", nil)
	assert.ErrorIs(t, err, feature.ErrColumnMismatch)

	err = WriteMatrix(&buf, s, m, "risk_level", []string{"Low"})
	assert.ErrorIs(t, err, table.ErrLengthMismatch)

	assert.ErrorIs(t, WriteMatrix(&buf, nil, m, "", nil), feature.ErrNotFitted)
}

func TestWriteTable(t *testing.T) {
	tbl := table.MustNew(
		table.NewNumeric("a", []float64{1.25, math.NaN()}),
		table.NewCategorical("b", []string{"x", ""}, []bool{false, true}),
	)
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, tbl))
	assert.Equal(t, "a,b\n1.25,x\n,\n", buf.String())
}

func TestReadScaler_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadScaler(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("columns: [a]\nmean: []\nstd: []\n"), 0o600))
	_, err = ReadScaler(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("{}\n"), 0o600))
	_, err = ReadScaler(empty)
	assert.ErrorIs(t, err, feature.ErrNotFitted)

	assert.ErrorIs(t, WriteScaler(filepath.Join(dir, "x.yaml"), nil), feature.ErrNotFitted)
}
