package facematch

import (
	"math"
	"testing"
)

func TestIndex_Search(t *testing.T) {
	idx := NewIndex()
	idx.Add("sarah", Embedding{0.1, 0.2, 0.3})
	idx.Add("mike", Embedding{0.9, 0.9, 0.9})
	idx.Add("emma", Embedding{0.12, 0.22, 0.31})

	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", idx.Len())
	}

	hits := idx.Search(Embedding{0.1, 0.2, 0.3}, 3, 0.6)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits below threshold, got %d: %+v", len(hits), hits)
	}
	if hits[0].Key != "sarah" {
		t.Errorf("expected nearest to be sarah, got %s", hits[0].Key)
	}
	if hits[0].Distance > hits[1].Distance {
		t.Errorf("hits not sorted: %+v", hits)
	}
	if math.Abs(hits[0].Distance) > 1e-6 {
		t.Errorf("expected exact distance 0 for identical vector, got %v", hits[0].Distance)
	}
}

func TestIndex_IgnoresDuplicatesAndEmpty(t *testing.T) {
	idx := NewIndex()
	idx.Add("a", Embedding{1, 0})
	idx.Add("a", Embedding{0, 1})
	idx.Add("b", nil)

	if idx.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", idx.Len())
	}
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex()
	if hits := idx.Search(Embedding{1, 2}, 5, 0.6); len(hits) != 0 {
		t.Errorf("expected no hits on empty index, got %v", hits)
	}
}
