package counts

// AggregateCountOfCounts sums per-token count-of-counts into one global
// table. Non-positive entries are ignored.
func AggregateCountOfCounts(perToken map[string]map[int64]int64) map[int64]int64 {
	global := make(map[int64]int64)
	for _, cc := range perToken {
		for c, n := range cc {
			if n > 0 {
				global[c] += n
			}
		}
	}
	return global
}

// GoodTuring re-estimates the counts 0..threshold-1 from a global
// count-of-counts table N:
//
//	c* = (c+1) * N(c+1) / N(c)
//
// When N(c) is zero the denominator is taken as 1. This approximates rather
// than omits counts that were never observed. Only positive estimates are
// returned; larger counts are left unsmoothed by the caller.
func GoodTuring(countOfCounts map[int64]int64, threshold int) map[int64]float64 {
	table := make(map[int64]float64, threshold)
	for c := int64(0); c < int64(threshold); c++ {
		denom := countOfCounts[c]
		if denom <= 0 {
			denom = 1
		}
		smoothed := float64(c+1) * float64(countOfCounts[c+1]) / float64(denom)
		if smoothed > 0 {
			table[c] = smoothed
		}
	}
	return table
}
