package checkpoint

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	graph := json.RawMessage(`{"name":"demo","nodes":[]}`)
	cp := New("run-1", 2, graph, []string{"start", "prompt"})
	assert.Equal(t, Version, cp.Version)
	assert.False(t, cp.Timestamp.IsZero())

	data, err := cp.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Tick)
	assert.JSONEq(t, string(graph), string(got.Graph))
	assert.Equal(t, []string{"start", "prompt"}, got.Executed)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"version":99}`))
	assert.ErrorContains(t, err, "unsupported checkpoint version")
}
