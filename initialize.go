package cgc

import "math/rand/v2"

// InitialAssignment spreads n elements over k clusters as evenly as possible
// (element i goes to i mod k) and then shuffles the result, so cluster sizes
// differ by at most one. rng may be nil to use the global source.
func InitialAssignment(n, k int, rng *rand.Rand) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i % k
	}
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rng != nil {
		rng.Shuffle(n, swap)
	} else {
		rand.Shuffle(n, swap)
	}
	return out
}
