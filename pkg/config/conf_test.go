package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchmarny/riskprep/pkg/risk"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, 5, c.Dataset.Year)
	assert.Equal(t, 0.95, c.Features.CorrelationThreshold)
	assert.Equal(t, 0.3, c.Split.TestSize)
	assert.Equal(t, uint64(42), c.Split.Seed)
	assert.Equal(t, risk.DefaultLabel, c.Split.Stratify)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `
dataset:
  year: 2
split:
  test_size: 0.25
  seed: 7
risk:
  leverage: Attr2
`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Dataset.Year)
	assert.Equal(t, 0.25, c.Split.TestSize)
	assert.Equal(t, uint64(7), c.Split.Seed)
	assert.Equal(t, "Attr2", c.Risk.Leverage)
	assert.Equal(t, risk.DefaultLabel, c.Risk.Label)

	t.Setenv("RISKPREP_SPLIT__TEST_SIZE", "0.2")
	t.Setenv("RISKPREP_STORE__DSN", "postgres://localhost/riskprep")
	t.Setenv("RISKPREP_STORE__DRIVER", "postgres")

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, c.Split.TestSize)
	assert.Equal(t, uint64(7), c.Split.Seed)
	assert.Equal(t, "postgres", c.Store.Driver)
	assert.Equal(t, "postgres://localhost/riskprep", c.Store.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"year", "dataset:\n  year: 7\n", "dataset.year"},
		{"test size", "split:\n  test_size: 1.5\n", "split.test_size"},
		{"clip order", "clip:\n  lower: 50\n  upper: 10\n", "clip.upper"},
		{"quantiles", "risk:\n  medium_quantile: 0.9\n  high_quantile: 0.8\n", "risk.high_quantile"},
		{"driver", "store:\n  driver: mysql\n", "store.driver"},
		{"url", "fetch:\n  url: not a url\n", "fetch.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	var c *Config
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()

	c1 := Default()
	c1.Dataset.Year = 3
	c1.Clip.Enabled = false
	c1.Risk.Profitability = "Attr1"

	path, err := Save(dir, c1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	c2, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	_, err = Save("", c1)
	assert.Error(t, err)
	_, err = Save(dir, nil)
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	c := Default()
	c.Clip.Enabled = false
	c.Risk.Leverage = "Attr2"

	lo := c.LoadOptions(0, "")
	assert.Equal(t, 5, lo.Year)
	assert.Equal(t, c.Paths.Raw, lo.RawDir)
	assert.Equal(t, 2, c.LoadOptions(2, "x.csv").Year)
	assert.Equal(t, "x.csv", c.LoadOptions(2, "x.csv").Path)

	po := c.PipelineOptions()
	assert.False(t, po.Clip.Enabled)
	assert.Equal(t, "Attr2", po.Risk.Leverage)
	assert.Equal(t, c.Split.Stratify, po.Split.Stratify)
	assert.Equal(t, 0.95, po.CorrelationThreshold)
	assert.Nil(t, po.Scaler)

	eo := c.ExportOptions(3)
	assert.Equal(t, 3, eo.Year)
	assert.Equal(t, c.Risk.Label, eo.LabelColumn)
	assert.Equal(t, c.Paths.Splits, eo.SplitsDir)
}
