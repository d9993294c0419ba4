package feature

import (
	"log/slog"
	"math"

	"github.com/mchmarny/riskprep/pkg/stats"
	"github.com/mchmarny/riskprep/pkg/table"
)

const DefaultCorrelationThreshold = 0.95

// Selection reports the outcome of correlation pruning.
type Selection struct {
	Threshold float64  `json:"threshold" yaml:"threshold"`
	Removed   []string `json:"removed" yaml:"removed"`
	Retained  []string `json:"retained" yaml:"retained"`
}

// SelectUncorrelated drops numeric columns highly correlated with an
// earlier numeric column. For every pair i < j whose absolute correlation
// exceeds threshold, column j is removed. Undefined correlations never
// exceed the threshold.
func SelectUncorrelated(t *table.Table, threshold float64) (*table.Table, Selection) {
	if threshold <= 0 {
		threshold = DefaultCorrelationThreshold
	}
	sel := Selection{Threshold: threshold}

	numeric := t.NamesOf(table.Numeric)
	if len(numeric) < 2 {
		sel.Retained = t.Names()
		return t, sel
	}

	cols := make([][]float64, len(numeric))
	for i, n := range numeric {
		c, _ := t.Column(n)
		cols[i] = c.Floats
	}

	for j := 1; j < len(cols); j++ {
		for i := 0; i < j; i++ {
			r := stats.Correlation(cols[i], cols[j])
			if !math.IsNaN(r) && math.Abs(r) > threshold {
				sel.Removed = append(sel.Removed, numeric[j])
				break
			}
		}
	}

	out := t
	if len(sel.Removed) > 0 {
		out = t.Drop(sel.Removed...)
	}
	sel.Retained = out.Names()

	slog.Debug("correlated features removed", "threshold", threshold, "removed", len(sel.Removed), "retained", len(sel.Retained))
	return out, sel
}
