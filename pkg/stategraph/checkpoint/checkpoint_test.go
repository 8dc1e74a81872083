package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_PopulatesMetadata stamps format, timestamps, and identity.
func TestNew_PopulatesMetadata(t *testing.T) {
	cp := New("run-1", "worker", 3, 7, []byte(`{"n":7}`), []string{"next-a", "next-b"})

	assert.Equal(t, Format, cp.Format)
	assert.Equal(t, "run-1", cp.RunID)
	assert.Equal(t, "worker", cp.Node)
	assert.Equal(t, 3, cp.Version)
	assert.Equal(t, 7, cp.Step)
	assert.Equal(t, []string{"next-a", "next-b"}, cp.NextFrontier)
	assert.False(t, cp.CreatedAt.IsZero())
	assert.Equal(t, "UTC", cp.CreatedAt.Location().String())
}

// TestMarshal_RoundTrip survives serialization intact.
func TestMarshal_RoundTrip(t *testing.T) {
	cp := New("run-1", "worker", 2, 5, []byte(`{"key":"value"}`), []string{"next"})

	data, err := cp.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, got.RunID)
	assert.Equal(t, cp.Version, got.Version)
	assert.Equal(t, cp.Step, got.Step)
	assert.Equal(t, cp.Node, got.Node)
	assert.JSONEq(t, `{"key":"value"}`, string(got.State))
	assert.Equal(t, cp.NextFrontier, got.NextFrontier)
}

// TestUnmarshal_Garbage fails on malformed input.
func TestUnmarshal_Garbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.Error(t, err)
}

// TestMarshal_EmptyFrontierOmitted: a completed run's checkpoint has no
// next_frontier field.
func TestMarshal_EmptyFrontierOmitted(t *testing.T) {
	cp := New("run-1", "last", 1, 1, []byte(`{}`), nil)

	data, err := cp.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "next_frontier")
}
