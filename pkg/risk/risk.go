package risk

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/mchmarny/riskprep/pkg/stats"
	"github.com/mchmarny/riskprep/pkg/table"
)

const (
	Low    = "Low"
	Medium = "Medium"
	High   = "High"

	DefaultTarget         = "class"
	DefaultLabel          = "risk_level"
	DefaultMaxKeyRatios   = 7
	DefaultMediumQuantile = 0.60
	DefaultHighQuantile   = 0.85
	DefaultEpsilon        = 1e-6

	internalPrefix = "_"
)

// Levels lists the labels from lowest to highest risk.
var Levels = []string{Low, Medium, High}

var ErrNoTarget = errors.New("no binary target column found")

// Options configure the labeler. Zero values fall back to the defaults.
type Options struct {
	Target         string
	Label          string
	MaxKeyRatios   int
	Profitability  string
	Leverage       string
	MediumQuantile float64
	HighQuantile   float64
	Epsilon        float64
}

// DefaultOptions returns the labeler defaults.
func DefaultOptions() Options {
	return Options{
		Target:         DefaultTarget,
		Label:          DefaultLabel,
		MaxKeyRatios:   DefaultMaxKeyRatios,
		MediumQuantile: DefaultMediumQuantile,
		HighQuantile:   DefaultHighQuantile,
		Epsilon:        DefaultEpsilon,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Target == "" {
		o.Target = d.Target
	}
	if o.Label == "" {
		o.Label = d.Label
	}
	if o.MaxKeyRatios <= 0 {
		o.MaxKeyRatios = d.MaxKeyRatios
	}
	if o.MediumQuantile <= 0 {
		o.MediumQuantile = d.MediumQuantile
	}
	if o.HighQuantile <= 0 {
		o.HighQuantile = d.HighQuantile
	}
	if o.Epsilon <= 0 {
		o.Epsilon = d.Epsilon
	}
	return o
}

// Thresholds are the normalized-score cut points.
type Thresholds struct {
	Medium float64 `json:"medium" yaml:"medium"`
	High   float64 `json:"high" yaml:"high"`
}

// Result summarizes a labeling pass.
type Result struct {
	Target     string         `json:"target" yaml:"target"`
	KeyRatios  []string       `json:"key_ratios" yaml:"key_ratios"`
	Thresholds *Thresholds    `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Counts     map[string]int `json:"counts" yaml:"counts"`
	Bankrupt   int            `json:"bankrupt" yaml:"bankrupt"`
}

// Label adds a categorical risk label column derived from a composite
// score over key financial ratios. Bankrupt rows are always High.
func Label(t *table.Table, opt Options) (*table.Table, *Result, error) {
	o := opt.withDefaults()

	target, err := resolveTarget(t, o.Target)
	if err != nil {
		return nil, nil, err
	}
	bankrupt := normalizeTarget(target)

	keys := keyRatios(t, target.Name, o)
	scores := make([]float64, t.NumRows())

	for i, name := range keys {
		c, _ := t.Column(name)
		addContribution(scores, c.Floats, role(i), o.Epsilon)
	}

	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	for i, b := range bankrupt {
		if b {
			scores[i] = maxScore + 1
		}
	}

	normalize(scores, o.Epsilon)

	res := &Result{
		Target:    target.Name,
		KeyRatios: keys,
		Counts:    make(map[string]int, len(Levels)),
	}

	var safe []float64
	for i, s := range scores {
		if bankrupt[i] {
			res.Bankrupt++
			continue
		}
		safe = append(safe, s)
	}
	if len(safe) > 0 {
		res.Thresholds = &Thresholds{
			Medium: stats.Quantile(safe, o.MediumQuantile),
			High:   stats.Quantile(safe, o.HighQuantile),
		}
	}

	labels := make([]string, t.NumRows())
	for i, s := range scores {
		labels[i] = classify(s, bankrupt[i], res.Thresholds)
		res.Counts[labels[i]]++
	}

	out := t.Drop(o.Label).MustReplace(table.NewCategorical(o.Label, labels, nil))

	slog.Debug("risk labels assigned",
		"target", target.Name,
		"keys", len(keys),
		"bankrupt", res.Bankrupt,
		"low", res.Counts[Low],
		"medium", res.Counts[Medium],
		"high", res.Counts[High])

	return out, res, nil
}

func classify(score float64, bankrupt bool, th *Thresholds) string {
	if bankrupt {
		return High
	}
	if th == nil {
		return Low
	}
	switch {
	case score >= th.High:
		return High
	case score >= th.Medium:
		return Medium
	default:
		return Low
	}
}

type ratioRole int

const (
	roleProfitability ratioRole = iota
	roleLeverage
	roleOther
)

func role(i int) ratioRole {
	switch i {
	case 0:
		return roleProfitability
	case 1:
		return roleLeverage
	default:
		return roleOther
	}
}

// addContribution adds one key ratio's risk contribution to scores. Missing
// values are filled with the ratio's median before scoring.
func addContribution(scores, vals []float64, r ratioRole, eps float64) {
	med := stats.Median(vals)
	if math.IsNaN(med) {
		return
	}
	x := make([]float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			v = med
		}
		x[i] = v
	}

	p25 := stats.Percentile(x, 25)
	p75 := stats.Percentile(x, 75)

	for i, v := range x {
		switch r {
		case roleProfitability:
			scores[i] += math.Max(0, -v) / (math.Abs(p25) + eps)
		case roleLeverage:
			scores[i] += math.Max(0, v-p75) / (p75 + eps)
		default:
			scores[i] += math.Max(0, p25-v) / (math.Abs(p25) + eps)
		}
	}
}

func normalize(scores []float64, eps float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := stats.MinMax(scores)
	for i, s := range scores {
		scores[i] = (s - lo) / (hi - lo + eps)
	}
}

// resolveTarget returns the named column, or the first column holding
// exactly two distinct values.
func resolveTarget(t *table.Table, name string) (*table.Column, error) {
	if c, ok := t.Column(name); ok {
		return c, nil
	}
	for _, c := range t.Columns() {
		if distinct(c) == 2 {
			slog.Debug("target column inferred", "requested", name, "using", c.Name)
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not present and no column has exactly two values", ErrNoTarget, name)
}

func distinct(c *table.Column) int {
	seen := make(map[string]struct{})
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		seen[c.String(i)] = struct{}{}
		if len(seen) > 2 {
			break
		}
	}
	return len(seen)
}

// normalizeTarget maps the target column to bankrupt flags.
func normalizeTarget(c *table.Column) []bool {
	out := make([]bool, c.Len())
	for i := range out {
		if c.IsMissing(i) {
			continue
		}
		if c.Kind == table.Numeric {
			out[i] = int(c.Floats[i]) == 1
			continue
		}
		switch strings.TrimSpace(c.Texts[i]) {
		case "1", "1.0", "True":
			out[i] = true
		}
	}
	return out
}

// keyRatios picks the numeric columns used for scoring. The first key has
// the profitability role and the second the leverage role; explicit role
// columns take those slots.
func keyRatios(t *table.Table, target string, o Options) []string {
	explicit := func(n string) bool {
		if n == "" || n == target || n == o.Label {
			return false
		}
		c, ok := t.Column(n)
		return ok && c.Kind == table.Numeric
	}

	var rest []string
	for _, c := range t.Columns() {
		if c.Kind != table.Numeric || c.Name == target || c.Name == o.Label {
			continue
		}
		if strings.HasPrefix(c.Name, internalPrefix) {
			continue
		}
		if (explicit(o.Profitability) && c.Name == o.Profitability) ||
			(explicit(o.Leverage) && c.Name == o.Leverage) {
			continue
		}
		rest = append(rest, c.Name)
	}

	keys := make([]string, 0, o.MaxKeyRatios)
	for _, n := range []string{o.Profitability, o.Leverage} {
		switch {
		case explicit(n) && !slices.Contains(keys, n):
			keys = append(keys, n)
		case len(rest) > 0:
			keys = append(keys, rest[0])
			rest = rest[1:]
		}
	}
	keys = append(keys, rest...)

	if len(keys) > o.MaxKeyRatios {
		keys = keys[:o.MaxKeyRatios]
	}
	return keys
}
