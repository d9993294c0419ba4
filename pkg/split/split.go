package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/mchmarny/riskprep/pkg/table"
)

const (
	DefaultTestSize = 0.3
	DefaultSeed     = 42
)

var ErrInvalidTestSize = errors.New("test size must be between 0 and 1")

// Options control the partition.
type Options struct {
	TestSize float64
	Seed     uint64
	// Stratify names a column whose class proportions are kept in both
	// partitions. Empty disables stratification.
	Stratify string
}

// DefaultOptions returns a 70/30 split seeded with 42.
func DefaultOptions() Options {
	return Options{TestSize: DefaultTestSize, Seed: DefaultSeed}
}

// Result holds both partitions and the source row indexes of each.
type Result struct {
	Train      *table.Table
	Test       *table.Table
	TrainIndex []int
	TestIndex  []int
}

// Sizes summarizes a partition.
type Sizes struct {
	Train int `json:"train" yaml:"train"`
	Test  int `json:"test" yaml:"test"`
}

func (r *Result) Sizes() Sizes {
	return Sizes{Train: len(r.TrainIndex), Test: len(r.TestIndex)}
}

// TrainTest partitions the rows of t. The test partition holds
// ceil(rows * TestSize) rows. The same seed always yields the same split.
func TrainTest(t *table.Table, opt Options) (*Result, error) {
	if opt.TestSize <= 0 || opt.TestSize >= 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTestSize, opt.TestSize)
	}

	n := t.NumRows()
	nTest := int(math.Ceil(float64(n) * opt.TestSize))
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed))

	var trainIdx, testIdx []int
	if opt.Stratify == "" {
		perm := rng.Perm(n)
		testIdx, trainIdx = perm[:nTest], perm[nTest:]
	} else {
		c, ok := t.Column(opt.Stratify)
		if !ok {
			return nil, fmt.Errorf("stratify column not found: %s", opt.Stratify)
		}
		trainIdx, testIdx = stratified(rng, c, nTest)
	}

	return &Result{
		Train:      t.Take(trainIdx),
		Test:       t.Take(testIdx),
		TrainIndex: trainIdx,
		TestIndex:  testIdx,
	}, nil
}

// stratified shuffles each class separately and allots test rows in
// proportion to class size, giving leftover rows to the classes with the
// largest remainders.
func stratified(rng *rand.Rand, c *table.Column, nTest int) (train, test []int) {
	groups := make(map[string][]int)
	for i := 0; i < c.Len(); i++ {
		k := c.String(i)
		groups[k] = append(groups[k], i)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := c.Len()
	type share struct {
		key  string
		take int
		frac float64
	}
	shares := make([]share, len(keys))
	allotted := 0
	for i, k := range keys {
		exact := float64(len(groups[k])) * float64(nTest) / float64(n)
		take := int(math.Floor(exact))
		shares[i] = share{key: k, take: take, frac: exact - float64(take)}
		allotted += take
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares[order[a]].frac > shares[order[b]].frac
	})
	for left := nTest - allotted; left > 0; {
		progressed := false
		for _, i := range order {
			if left == 0 {
				break
			}
			if shares[i].take < len(groups[shares[i].key]) {
				shares[i].take++
				left--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	for _, s := range shares {
		idx := groups[s.key]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		test = append(test, idx[:s.take]...)
		train = append(train, idx[s.take:]...)
	}
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	return train, test
}
