package scanner

import (
	"fmt"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/registry"
)

// State is the externally visible recognition state.
type State int

const (
	// Idle means no scan is running.
	Idle State = iota
	// Scanning means the camera is on and nobody is in front of it.
	Scanning
	// Recognized means an enrolled person is in front of the camera.
	Recognized
	// Unknown means a face is visible but matches nobody.
	Unknown
)

var stateNames = [...]string{"idle", "scanning", "recognized", "unknown"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// UnknownFaceID is the face id reported with the Unknown state.
const UnknownFaceID = "unknown"

// UnknownVisitor is the synthetic profile shown for faces matching nobody.
func UnknownVisitor() registry.Profile {
	return registry.Profile{
		ID:                  UnknownFaceID,
		Name:                "Unknown Visitor",
		Relation:            "Not in database",
		LastVisit:           "First visit",
		ConversationSummary: "This person is not yet registered in the system.",
		CurrentUpdate:       "Consider adding their profile for future recognition.",
		Avatar:              "❓",
	}
}

// Transition is one emitted change. A nil Profile means "nobody".
type Transition struct {
	State    State             `json:"state"`
	FaceID   string            `json:"faceId,omitempty"`
	Profile  *registry.Profile `json:"profile"`
	Distance float64           `json:"distance,omitempty"`
	At       time.Time         `json:"at"`
}

// Nobody reports whether the transition clears the display.
func (t Transition) Nobody() bool {
	return t.Profile == nil
}

// Status is a point-in-time view of the controller.
type Status struct {
	State               State             `json:"state"`
	FaceID              string            `json:"faceId,omitempty"`
	Profile             *registry.Profile `json:"profile"`
	Running             bool              `json:"running"`
	Degraded            bool              `json:"degraded"`
	ConsecutiveFailures int               `json:"consecutiveFailures"`
	Ticks               uint64            `json:"ticks"`
	SkippedTicks        uint64            `json:"skippedTicks"`
	FailedTicks         uint64            `json:"failedTicks"`
	Since               time.Time         `json:"since,omitzero"`
}

type identityKind int

const (
	nobody identityKind = iota
	unknownFace
	knownFace
)

// identity is the debounced result; transitions fire only when it changes.
type identity struct {
	kind identityKind
	id   string
}
