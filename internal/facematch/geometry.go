package facematch

// BBoxArea returns the area of an [x1, y1, x2, y2] bounding box, 0 when malformed.
func BBoxArea(bbox []float64) float64 {
	if len(bbox) != 4 {
		return 0
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Candidate is one detected face as reported by the embedding service.
type Candidate struct {
	Embedding Embedding
	BBox      []float64 // [x1, y1, x2, y2] in pixels
	DetScore  float64
}

// SelectPrimaryFace picks the face the camera is looking at when a frame holds
// several: the highest detection score weighted by bounding box area. Faces
// without an embedding are ignored. Returns -1 when nothing qualifies.
//
// Cross-frame tracking is out of scope, so the choice is made per frame.
func SelectPrimaryFace(faces []Candidate) int {
	best := -1
	bestScore := -1.0
	for i, f := range faces {
		if len(f.Embedding) == 0 {
			continue
		}
		area := BBoxArea(f.BBox)
		if area == 0 {
			area = 1 // missing bbox: rank by detection score alone
		}
		score := f.DetScore * area
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}
