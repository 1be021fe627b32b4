package facematch

import (
	"math"
	"testing"
)

type face struct {
	id  string
	emb Embedding
}

func faceEmbedding(f face) Embedding { return f.emb }

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Embedding
		expected float64
	}{
		{"identical", Embedding{1, 2, 3}, Embedding{1, 2, 3}, 0},
		{"3-4-5", Embedding{0, 0}, Embedding{3, 4}, 5},
		{"single axis", Embedding{0.1, 0, 0}, Embedding{0.6, 0, 0}, 0.5},
		{"length mismatch", Embedding{1, 2}, Embedding{1, 2, 3}, math.Inf(1)},
		{"empty", Embedding{}, Embedding{}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EuclideanDistance(tt.a, tt.b)
			if math.IsInf(tt.expected, 1) {
				if !math.IsInf(result, 1) {
					t.Errorf("expected +Inf, got %v", result)
				}
				return
			}
			if math.Abs(result-tt.expected) > 1e-6 {
				t.Errorf("EuclideanDistance(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestEuclideanDistance_Symmetric(t *testing.T) {
	a := Embedding{0.12, -0.4, 0.9, 0.33}
	b := Embedding{-0.2, 0.5, 0.1, 0.0}
	if EuclideanDistance(a, b) != EuclideanDistance(b, a) {
		t.Error("distance is not symmetric")
	}
}

func TestNearest(t *testing.T) {
	sarah := face{"sarah", Embedding{0.1, 0.2, 0.3}}
	mike := face{"mike", Embedding{0.9, 0.9, 0.9}}

	tests := []struct {
		name       string
		query      Embedding
		items      []face
		expectedID string
		expectOK   bool
	}{
		{
			name:       "exact match",
			query:      Embedding{0.1, 0.2, 0.3},
			items:      []face{mike, sarah},
			expectedID: "sarah",
			expectOK:   true,
		},
		{
			name:       "close match picks minimum",
			query:      Embedding{0.8, 0.85, 0.9},
			items:      []face{sarah, mike},
			expectedID: "mike",
			expectOK:   true,
		},
		{
			name:     "everything too far",
			query:    Embedding{5, 5, 5},
			items:    []face{sarah, mike},
			expectOK: false,
		},
		{
			name:     "empty registry",
			query:    Embedding{0.1, 0.2, 0.3},
			items:    nil,
			expectOK: false,
		},
		{
			name:     "empty query",
			query:    nil,
			items:    []face{sarah},
			expectOK: false,
		},
		{
			name:     "dimension mismatch never matches",
			query:    Embedding{0.1, 0.2},
			items:    []face{sarah},
			expectOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, _, ok := Nearest(tt.query, tt.items, faceEmbedding, 0.6)
			if ok != tt.expectOK {
				t.Fatalf("expected ok=%v, got %v", tt.expectOK, ok)
			}
			if !ok {
				if idx != -1 {
					t.Errorf("expected idx -1 when nothing matches, got %d", idx)
				}
				return
			}
			if tt.items[idx].id != tt.expectedID {
				t.Errorf("expected %s, got %s", tt.expectedID, tt.items[idx].id)
			}
		})
	}
}

func TestNearest_ThresholdIsExclusive(t *testing.T) {
	items := []face{{"a", Embedding{0, 0}}}

	// distance exactly 0.5
	if _, _, ok := Nearest(Embedding{0.5, 0}, items, faceEmbedding, 0.5); ok {
		t.Error("distance equal to threshold must not match")
	}
	if _, d, ok := Nearest(Embedding{0.5, 0}, items, faceEmbedding, 0.6); !ok || math.Abs(d-0.5) > 1e-6 {
		t.Errorf("expected match at distance 0.5, got ok=%v d=%v", ok, d)
	}
}

func TestNearest_TieKeepsFirst(t *testing.T) {
	items := []face{
		{"first", Embedding{0.1, 0}},
		{"second", Embedding{-0.1, 0}},
	}

	idx, _, ok := Nearest(Embedding{0, 0}, items, faceEmbedding, 0.6)
	if !ok {
		t.Fatal("expected a match")
	}
	if items[idx].id != "first" {
		t.Errorf("expected tie to resolve to first item, got %s", items[idx].id)
	}
}

func TestNearest_SkipsMismatchedRecords(t *testing.T) {
	items := []face{
		{"short", Embedding{0.1}},
		{"ok", Embedding{0.1, 0.1}},
	}

	idx, _, ok := Nearest(Embedding{0.1, 0.1}, items, faceEmbedding, 0.6)
	if !ok || items[idx].id != "ok" {
		t.Errorf("expected match on 'ok', got idx=%d ok=%v", idx, ok)
	}
}
