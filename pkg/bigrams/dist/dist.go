// Package dist implements an immutable discrete distribution over tokens
// built from raw counts, with optional Good-Turing smoothed probabilities.
package dist

import (
	"fmt"
	"maps"
	"math"
	"sort"

	"github.com/cognicore/bigrams/pkg/bigrams/internalerr"
)

// Source yields uniform random numbers in [0, 1).
// *rand.Rand from math/rand and math/rand/v2 both satisfy it.
type Source interface {
	Float64() float64
}

// Pair is one item of a distribution and its raw count.
type Pair struct {
	Item  string
	Count int64
}

// Distribution is a snapshot of counts for the followers of one token.
//
// The order of items is fixed at construction; the cumulative sums used for
// sampling are indexed by that order.
type Distribution struct {
	items      []string
	counts     []int64
	cumulative []int64
	index      map[string]int
	total      int64

	// Smoothing only applies to probabilities, never to sampling, so a
	// separate total over the smoothed counts is kept.
	smoothing     map[int64]float64
	smoothedTotal float64
}

// Option configures a Distribution.
type Option func(*options)

type options struct {
	table         map[int64]float64
	countOfCounts map[int64]int64
}

// WithSmoothing enables smoothed probabilities. table maps a raw count to
// its smoothed count; counts absent from the table are used unchanged.
// countOfCounts maps a count c to the number of items seen exactly c times,
// including the c=0 entry for unseen items; it is only read while New
// computes the smoothed total. The table is copied.
func WithSmoothing(table map[int64]float64, countOfCounts map[int64]int64) Option {
	return func(o *options) {
		o.table = table
		o.countOfCounts = countOfCounts
	}
}

// New builds a distribution from pairs, keeping their order.
// Pairs must be non-empty, with unique items and positive counts.
func New(pairs []Pair, opts ...Option) (*Distribution, error) {
	if len(pairs) == 0 {
		return nil, internalerr.ErrEmptyDistribution
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	d := &Distribution{
		items:      make([]string, len(pairs)),
		counts:     make([]int64, len(pairs)),
		cumulative: make([]int64, len(pairs)),
		index:      make(map[string]int, len(pairs)),
	}

	// While finding the total, track each running total for sampling
	var running int64
	for i, p := range pairs {
		if p.Count <= 0 {
			return nil, fmt.Errorf("item %q has count %d: %w", p.Item, p.Count, internalerr.ErrInvalidInput)
		}
		if _, dup := d.index[p.Item]; dup {
			return nil, fmt.Errorf("duplicate item %q: %w", p.Item, internalerr.ErrInvalidInput)
		}
		running += p.Count
		d.items[i] = p.Item
		d.counts[i] = p.Count
		d.cumulative[i] = running
		d.index[p.Item] = i
	}
	d.total = running

	if len(o.table) > 0 {
		if o.countOfCounts == nil {
			return nil, fmt.Errorf("smoothing table without count-of-counts: %w", internalerr.ErrInvalidInput)
		}
		d.smoothing = maps.Clone(o.table)
		for c, n := range o.countOfCounts {
			d.smoothedTotal += d.smoothedCount(c) * float64(n)
		}
	}

	return d, nil
}

// FromCounts builds a distribution from a count map. Items are ordered
// lexically so the result does not depend on map iteration order.
// Zero counts are skipped.
func FromCounts(counts map[string]int64, opts ...Option) (*Distribution, error) {
	keys := make([]string, 0, len(counts))
	for k, c := range counts {
		if c != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]Pair, len(keys))
	for i, k := range keys {
		pairs[i] = Pair{Item: k, Count: counts[k]}
	}
	return New(pairs, opts...)
}

// Sample draws an item with probability proportional to its raw count.
func (d *Distribution) Sample(r Source) string {
	x := r.Float64() * float64(d.total)

	// First index whose running total exceeds x. Item i is thus chosen with
	// probability (cumulative[i] - cumulative[i-1]) / total.
	i := sort.Search(len(d.cumulative), func(i int) bool {
		return float64(d.cumulative[i]) > x
	})
	if i == len(d.items) {
		i = len(d.items) - 1
	}
	return d.items[i]
}

// Probability returns the probability of item being drawn. Without
// smoothing this is count/total; with smoothing the count is mapped through
// the smoothing table and divided by the smoothed total.
func (d *Distribution) Probability(item string) (float64, error) {
	count := d.Count(item)
	if !d.Smoothed() {
		return float64(count) / float64(d.total), nil
	}

	sc := d.smoothedCount(count)
	if sc <= 0 {
		return 0, fmt.Errorf("item %q (count %d): %w", item, count, internalerr.ErrNonPositiveCount)
	}
	return sc / d.smoothedTotal, nil
}

// Surprisal returns -ln(Probability(item)), +Inf for impossible items.
func (d *Distribution) Surprisal(item string) (float64, error) {
	p, err := d.Probability(item)
	if err != nil {
		return 0, err
	}
	if p == 0 {
		return math.Inf(1), nil
	}
	return -math.Log(p), nil
}

func (d *Distribution) smoothedCount(c int64) float64 {
	if v, ok := d.smoothing[c]; ok {
		return v
	}
	return float64(c)
}

// Count returns the raw count of item, 0 if unseen.
func (d *Distribution) Count(item string) int64 {
	if i, ok := d.index[item]; ok {
		return d.counts[i]
	}
	return 0
}

// Total returns the sum of raw counts.
func (d *Distribution) Total() int64 { return d.total }

// SmoothedTotal returns the sum of smoothed counts, 0 when unsmoothed.
func (d *Distribution) SmoothedTotal() float64 { return d.smoothedTotal }

// Smoothed reports whether probabilities use the smoothing table.
func (d *Distribution) Smoothed() bool { return len(d.smoothing) > 0 }

// Len returns the number of distinct items.
func (d *Distribution) Len() int { return len(d.items) }

// Items returns the items and counts in construction order.
func (d *Distribution) Items() []Pair {
	out := make([]Pair, len(d.items))
	for i := range d.items {
		out[i] = Pair{Item: d.items[i], Count: d.counts[i]}
	}
	return out
}
