package scanner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Text(t *testing.T) {
	for _, s := range []State{Idle, Scanning, Recognized, Unknown} {
		b, err := s.MarshalText()
		require.NoError(t, err)

		var back State
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("dancing")))
	assert.Equal(t, "state(9)", State(9).String())
}

func TestTransition_JSON(t *testing.T) {
	visitor := UnknownVisitor()
	data, err := json.Marshal(Transition{State: Unknown, FaceID: UnknownFaceID, Profile: &visitor})
	require.NoError(t, err)

	assert.Contains(t, string(data), `"state":"unknown"`)
	assert.Contains(t, string(data), `"name":"Unknown Visitor"`)

	data, err = json.Marshal(Transition{State: Idle})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"profile":null`)
}
