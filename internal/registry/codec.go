package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/constants"
)

// storedFace is the persisted layout of one record. Field names match what the
// browser version of the app kept in localStorage so old exports still load.
type storedFace struct {
	ID         string    `json:"id"`
	PersonData Profile   `json:"personData"`
	Descriptor []float32 `json:"descriptor"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	EnrolledAt time.Time `json:"enrolledAt,omitzero"`
}

type document struct {
	Version int          `json:"version"`
	SavedAt time.Time    `json:"saved_at"`
	Faces   []storedFace `json:"faces"`
}

// Encode serializes faces into the versioned JSON document.
func Encode(faces []EnrolledFace, savedAt time.Time) ([]byte, error) {
	doc := document{
		Version: constants.RegistryFormatVersion,
		SavedAt: savedAt.UTC(),
		Faces:   make([]storedFace, 0, len(faces)),
	}
	for _, f := range faces {
		doc.Faces = append(doc.Faces, storedFace{
			ID:         f.ID(),
			PersonData: f.Profile,
			Descriptor: f.Embedding,
			ImageURL:   f.ImageRef,
			EnrolledAt: f.EnrolledAt,
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal registry: %w", err)
	}
	return data, nil
}

// Decode parses either the versioned document or the legacy bare array.
// Records without an id are dropped; later duplicates of an id win.
func Decode(data []byte) ([]EnrolledFace, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrStorageCorrupt)
	}

	var stored []storedFace
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &stored); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
		}
	case '{':
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
		}
		if doc.Version > constants.RegistryFormatVersion {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrStorageCorrupt, doc.Version)
		}
		stored = doc.Faces
	default:
		return nil, fmt.Errorf("%w: unexpected payload", ErrStorageCorrupt)
	}

	faces := make([]EnrolledFace, 0, len(stored))
	index := make(map[string]int, len(stored))
	for _, s := range stored {
		id := s.ID
		if id == "" {
			id = s.PersonData.ID
		}
		if id == "" {
			continue
		}
		profile := s.PersonData
		profile.ID = id
		face := EnrolledFace{
			Embedding:  s.Descriptor,
			Profile:    profile,
			ImageRef:   s.ImageURL,
			EnrolledAt: s.EnrolledAt,
		}
		if i, ok := index[id]; ok {
			faces[i] = face
			continue
		}
		index[id] = len(faces)
		faces = append(faces, face)
	}
	return faces, nil
}
