package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/riskprep/pkg/clean"
	"github.com/mchmarny/riskprep/pkg/feature"
	"github.com/mchmarny/riskprep/pkg/risk"
	"github.com/mchmarny/riskprep/pkg/split"
	"github.com/mchmarny/riskprep/pkg/table"
)

var errNilTable = errors.New("input table is nil")

// Options configure every stage of a run.
type Options struct {
	Clip                 clean.ClipOptions
	Risk                 risk.Options
	CorrelationThreshold float64
	Split                split.Options
	// Scaler, when set, is reused instead of fitting on the training rows.
	Scaler *feature.ScalerStats
}

// DefaultOptions returns the stage defaults.
func DefaultOptions() Options {
	return Options{
		Clip:                 clean.DefaultClipOptions(),
		Risk:                 risk.DefaultOptions(),
		CorrelationThreshold: feature.DefaultCorrelationThreshold,
		Split:                split.DefaultOptions(),
	}
}

// Summary is the serializable account of a run.
type Summary struct {
	InputRows         int                  `json:"input_rows" yaml:"input_rows"`
	InputCols         int                  `json:"input_cols" yaml:"input_cols"`
	OutputRows        int                  `json:"output_rows" yaml:"output_rows"`
	OutputCols        int                  `json:"output_cols" yaml:"output_cols"`
	Imputed           clean.ImputeReport   `json:"imputation" yaml:"imputation"`
	DuplicatesRemoved int                  `json:"duplicates_removed" yaml:"duplicates_removed"`
	Clipped           []clean.Bounds       `json:"clipped,omitempty" yaml:"clipped,omitempty"`
	Risk              *risk.Result         `json:"risk" yaml:"risk"`
	Features          feature.Selection    `json:"features" yaml:"features"`
	Encoded           []feature.Encoding   `json:"encoded,omitempty" yaml:"encoded,omitempty"`
	Split             split.Sizes          `json:"split" yaml:"split"`
	Scaler            *feature.ScalerStats `json:"scaler" yaml:"scaler"`
	Duration          string               `json:"duration" yaml:"duration"`
}

// Result holds the processed data of a run.
type Result struct {
	Summary   Summary
	Processed *table.Table
	Split     *split.Result
	Scaled    *feature.Scaled
	// Features are the scaled feature columns, in matrix order.
	Features []string
	// Labels hold the risk label of each training and test row.
	TrainLabels []string
	TestLabels  []string
}

// Run cleans, labels, selects, encodes, splits and scales t.
func Run(t *table.Table, opt Options) (*Result, error) {
	if t == nil {
		return nil, errNilTable
	}
	start := time.Now()
	res := &Result{}
	sum := &res.Summary
	sum.InputRows, sum.InputCols = t.NumRows(), t.NumCols()

	cur, report := clean.Impute(t)
	sum.Imputed = report
	slog.Info("missing values imputed", "columns", len(report.Imputed), "skipped", len(report.Skipped))

	cur, sum.DuplicatesRemoved = clean.DropDuplicates(cur)
	slog.Info("duplicates removed", "rows", sum.DuplicatesRemoved, "remaining", cur.NumRows())

	cur, sum.Clipped = clean.ClipOutliers(cur, opt.Clip)
	slog.Info("outliers clipped", "enabled", opt.Clip.Enabled, "columns", len(sum.Clipped))

	cur, riskRes, err := risk.Label(cur, opt.Risk)
	if err != nil {
		return nil, fmt.Errorf("labeling risk: %w", err)
	}
	sum.Risk = riskRes
	slog.Info("risk labels created",
		"low", riskRes.Counts[risk.Low],
		"medium", riskRes.Counts[risk.Medium],
		"high", riskRes.Counts[risk.High])

	cur, sum.Features = feature.SelectUncorrelated(cur, opt.CorrelationThreshold)
	slog.Info("redundant features removed", "removed", len(sum.Features.Removed), "retained", len(sum.Features.Retained))

	label := labelName(opt.Risk)
	cur, sum.Encoded, err = feature.Encode(cur, label)
	if err != nil {
		return nil, err
	}
	slog.Info("categorical columns encoded", "columns", len(sum.Encoded))
	res.Processed = cur

	parts, err := split.TrainTest(cur, opt.Split)
	if err != nil {
		return nil, fmt.Errorf("splitting rows: %w", err)
	}
	res.Split = parts
	sum.Split = parts.Sizes()
	slog.Info("rows split", "train", sum.Split.Train, "test", sum.Split.Test)

	res.Features = featureColumns(cur, riskRes.Target, sum.Encoded)
	res.Scaled, err = feature.Scale(parts.Train, parts.Test, res.Features, opt.Scaler)
	if err != nil {
		return nil, fmt.Errorf("scaling features: %w", err)
	}
	sum.Scaler = res.Scaled.Stats
	res.Features = res.Scaled.Stats.Columns
	slog.Info("features scaled", "columns", len(res.Features))

	res.TrainLabels = labelsOf(parts.Train, label)
	res.TestLabels = labelsOf(parts.Test, label)

	sum.OutputRows, sum.OutputCols = cur.NumRows(), cur.NumCols()
	sum.Duration = time.Since(start).Round(time.Millisecond).String()
	return res, nil
}

func labelName(o risk.Options) string {
	if o.Label == "" {
		return risk.DefaultLabel
	}
	return o.Label
}

// featureColumns returns the numeric columns used as model inputs: every
// numeric column except the bankruptcy target and, when the target was
// categorical, its indicator columns.
func featureColumns(t *table.Table, target string, encoded []feature.Encoding) []string {
	skip := map[string]bool{target: true}
	for _, e := range encoded {
		if e.Column != target {
			continue
		}
		for _, n := range e.Indicators {
			skip[n] = true
		}
	}

	var out []string
	for _, n := range t.NamesOf(table.Numeric) {
		if !skip[n] {
			out = append(out, n)
		}
	}
	return out
}

func labelsOf(t *table.Table, name string) []string {
	c, ok := t.Column(name)
	if !ok {
		return nil
	}
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.String(i)
	}
	return out
}
