package facematch

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/memory-anchor/internal/constants"
)

// Neighbor is a search hit returned by Index.
type Neighbor struct {
	Key      string
	Distance float64
}

// Index is an approximate nearest-neighbour index over face embeddings keyed by
// person id. Distances reported to callers are always recomputed exactly.
type Index struct {
	graph   *hnsw.Graph[string]
	vectors map[string]Embedding
	mu      sync.RWMutex
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{vectors: make(map[string]Embedding)}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Add inserts an embedding. Empty embeddings and duplicate keys are ignored.
func (x *Index) Add(key string, e Embedding) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(e) == 0 {
		return
	}
	if _, exists := x.vectors[key]; exists {
		return
	}
	if x.graph == nil {
		x.graph = newGraph()
	}
	x.graph.Add(hnsw.MakeNode(key, []float32(e)))
	x.vectors[key] = e
}

// Len returns the number of indexed embeddings.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Search returns up to k neighbours strictly closer than maxDistance, nearest first.
func (x *Index) Search(query Embedding, k int, maxDistance float64) []Neighbor {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || k <= 0 || len(query) == 0 {
		return nil
	}

	var hits []Neighbor
	for _, n := range x.graph.Search([]float32(query), k) {
		vec, ok := x.vectors[n.Key]
		if !ok {
			continue
		}
		d := EuclideanDistance(query, vec)
		if d >= maxDistance {
			continue
		}
		hits = append(hits, Neighbor{Key: n.Key, Distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits
}
