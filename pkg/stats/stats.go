package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// dropNaN returns the non-NaN values of x in order.
func dropNaN(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Percentile returns the p-th percentile (0 <= p <= 100) of the non-NaN
// values of x using linear interpolation between closest ranks.
// Returns NaN when x holds no values.
func Percentile(x []float64, p float64) float64 {
	cp := dropNaN(x)
	n := len(cp)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(cp)
	if p <= 0 {
		return cp[0]
	}
	if p >= 100 {
		return cp[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	weight := rank - float64(lower)
	if upper >= n {
		return cp[lower]
	}
	return cp[lower]*(1-weight) + cp[upper]*weight
}

// Quantile is Percentile with q in [0, 1].
func Quantile(x []float64, q float64) float64 {
	return Percentile(x, q*100)
}

// Median returns the median of the non-NaN values of x, or NaN.
func Median(x []float64) float64 {
	return Percentile(x, 50)
}

// MinMax returns the smallest and largest non-NaN values of x.
// Both are NaN when x holds no values.
func MinMax(x []float64) (float64, float64) {
	cp := dropNaN(x)
	if len(cp) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(cp), floats.Max(cp)
}

// MeanStd returns the mean and population standard deviation of the
// non-NaN values of x. Both are NaN when x holds no values.
func MeanStd(x []float64) (mean, std float64) {
	cp := dropNaN(x)
	if len(cp) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(cp, nil)
}

// Correlation returns the Pearson correlation of x and y over the rows
// where both are present. The result is NaN when fewer than two such rows
// exist or either side is constant.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) {
		return math.NaN()
	}
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if constant(xs) || constant(ys) {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}

// Mode returns the most frequent value of vals. Ties resolve to the
// smallest value. ok is false when vals is empty.
func Mode(vals []string) (mode string, ok bool) {
	if len(vals) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best := -1
	for v, c := range counts {
		if c > best || (c == best && v < mode) {
			best = c
			mode = v
		}
	}
	return mode, true
}
