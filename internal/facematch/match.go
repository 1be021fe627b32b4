package facematch

import "math"

// Nearest scans items and returns the index of the one whose embedding is
// closest to query, together with that distance. The result is only reported
// when the minimum distance is strictly below threshold; otherwise ok is false.
//
// Ties keep the first item encountered in slice order. Embeddings are
// continuous values so exact ties practically never happen and the order is
// left as is.
//
// Nearest has no side effects and only reads items, so it is safe to call on
// a registry snapshot while writers publish new ones.
func Nearest[T any](query Embedding, items []T, embedding func(T) Embedding, threshold float64) (idx int, distance float64, ok bool) {
	idx = -1
	distance = math.Inf(1)
	if len(query) == 0 {
		return idx, distance, false
	}

	for i, item := range items {
		d := EuclideanDistance(query, embedding(item))
		if d < distance {
			distance = d
			idx = i
		}
	}

	if idx < 0 || distance >= threshold {
		return -1, distance, false
	}
	return idx, distance, true
}
