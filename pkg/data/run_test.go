package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/riskprep/pkg/feature"
)

func sampleRun() *RunDetail {
	return &RunDetail{
		Run: Run{
			Dataset:    "polish_companies_bankruptcy",
			Year:       1,
			Source:     "data/raw/1year.arff",
			InputRows:  100,
			OutputRows: 98,
			TrainRows:  68,
			TestRows:   30,
			Config:     "seed: 42\n",
		},
		Retained: []string{"Attr1", "Attr2", "class", "risk_level"},
		Removed:  []string{"Attr3"},
		Scaler: &feature.ScalerStats{
			Columns: []string{"Attr1", "Attr2"},
			Mean:    []float64{0.5, -1.25},
			Std:     []float64{1, 2.5},
		},
		Labels: map[string]int{"Low": 60, "Medium": 20, "High": 18},
	}
}

func testSaveAndGetRun(t *testing.T, s *Store) {
	ctx := context.Background()

	in := sampleRun()
	id, err := s.SaveRun(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, in.ID)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in.Dataset, got.Dataset)
	assert.Equal(t, in.Year, got.Year)
	assert.Equal(t, in.Config, got.Config)
	assert.Equal(t, in.TrainRows, got.TrainRows)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, in.Retained, got.Retained)
	assert.Equal(t, in.Removed, got.Removed)
	assert.Equal(t, in.Labels, got.Labels)
	assert.Equal(t, in.Scaler, got.Scaler)

	st, err := s.GetScalerStats(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, in.Scaler.Columns, st.Columns)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.GetScalerStats(ctx, "missing")
	assert.ErrorIs(t, err, feature.ErrNotFitted)
}

func TestSaveAndGetRun(t *testing.T) {
	testSaveAndGetRun(t, setupTestDB(t))
}

func TestSaveRun_NoScaler(t *testing.T) {
	s := setupTestDB(t)
	in := sampleRun()
	in.Scaler = nil

	id, err := s.SaveRun(context.Background(), in)
	require.NoError(t, err)

	got, err := s.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got.Scaler)
}

func TestSaveRun_RollsBack(t *testing.T) {
	s := setupTestDB(t)
	in := sampleRun()
	in.Scaler.Mean = nil

	_, err := s.SaveRun(context.Background(), in)
	require.Error(t, err)

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestListRuns(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		r := sampleRun()
		r.Year = i + 1
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		_, err := s.SaveRun(ctx, r)
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].Year)
	assert.Equal(t, 2, runs[1].Year)

	state, err := s.GetDataState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), state["run"])
	assert.Equal(t, int64(15), state["feature"])
	assert.Equal(t, int64(6), state["scaler"])
	assert.Equal(t, int64(9), state["label"])
	assert.Equal(t, int64(1), state["datasets"])
}

func TestRun_NilDB(t *testing.T) {
	var s *Store
	ctx := context.Background()

	_, err := s.SaveRun(ctx, sampleRun())
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.ListRuns(ctx, 1)
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.GetRun(ctx, "x")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.GetScalerStats(ctx, "x")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.GetDataState(ctx)
	assert.ErrorIs(t, err, errDBNotInitialized)
	assert.ErrorIs(t, s.DeleteRun(ctx, "x"), errDBNotInitialized)
	_, err = s.DeleteRuns(ctx)
	assert.ErrorIs(t, err, errDBNotInitialized)
}

func TestDeleteRun(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	keep, err := s.SaveRun(ctx, sampleRun())
	require.NoError(t, err)
	drop, err := s.SaveRun(ctx, sampleRun())
	require.NoError(t, err)

	require.NoError(t, s.DeleteRun(ctx, drop))
	_, err = s.GetRun(ctx, drop)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.DeleteRun(ctx, drop), ErrRunNotFound)

	_, err = s.GetRun(ctx, keep)
	require.NoError(t, err)

	state, err := s.GetDataState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state["run"])
	assert.Equal(t, int64(2), state["scaler"])
}

func TestDeleteRuns(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.SaveRun(ctx, sampleRun())
		require.NoError(t, err)
	}

	n, err := s.DeleteRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	state, err := s.GetDataState(ctx)
	require.NoError(t, err)
	for k, v := range state {
		assert.Zero(t, v, k)
	}
}
