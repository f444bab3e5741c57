package utils

import "math/rand"

// Sample picks up to n distinct elements uniformly at random without
// replacement. The input slice is not modified.
func Sample(rng *rand.Rand, items []string, n int) []string {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}

	pool := make([]string, len(items))
	copy(pool, items)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool[:n]
}
