// Package registry holds the enrolled faces: one record per person id, kept
// as an immutable snapshot that is swapped atomically on every mutation and
// persisted as a single JSON document in a key-value store.
package registry

import (
	"fmt"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/facematch"
)

// Profile is what the display shows about a person.
type Profile struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Relation            string `json:"relation"`
	Age                 *int   `json:"age,omitempty"`
	LastVisit           string `json:"lastVisit"`
	ConversationSummary string `json:"conversationSummary"`
	CurrentUpdate       string `json:"currentUpdate"`
	Avatar              string `json:"avatar"`
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	if p.Age != nil {
		age := *p.Age
		p.Age = &age
	}
	return p
}

// EnrolledFace is one registered person.
type EnrolledFace struct {
	Embedding  facematch.Embedding
	Profile    Profile
	ImageRef   string // opaque reference into the image store
	EnrolledAt time.Time
}

// ID returns the profile id.
func (f EnrolledFace) ID() string {
	return f.Profile.ID
}

func (f EnrolledFace) clone() EnrolledFace {
	f.Embedding = f.Embedding.Clone()
	f.Profile = f.Profile.Clone()
	return f
}

// RegisteredMessage is the registry size as shown to users.
func RegisteredMessage(n int) string {
	if n == 1 {
		return "1 face registered"
	}
	return fmt.Sprintf("%d faces registered", n)
}
