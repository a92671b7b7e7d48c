package agraphstore

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashDeterministic(t *testing.T) {
	m1, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	m2, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	assert.Equal(t, m1.Hash, m2.Hash, "identical mutations from the same node_id hash identically")
}

func TestComputeHashDiffersByNodeID(t *testing.T) {
	m1, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	m2, err := NewAddNode[string, string, string]("node2", "a", "hello")
	require.NoError(t, err)

	assert.NotEqual(t, m1.Hash, m2.Hash)
}

func TestComputeHashDiffersByPayload(t *testing.T) {
	m1, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	m2, err := NewAddNode[string, string, string]("node1", "a", "goodbye")
	require.NoError(t, err)

	assert.NotEqual(t, m1.Hash, m2.Hash)
}

func TestMutationCBORRoundTrip(t *testing.T) {
	for _, m := range []Mutation[string, string, string]{
		mustMutation(t, NewAddNode[string, string, string]("n", "a", "node-payload")),
		mustMutation(t, NewRemoveNode[string, string, string]("n", "a")),
		mustMutation(t, NewAddEdge[string, string, string]("n", "a", "b", "edge-payload")),
		mustMutation(t, NewRemoveEdge[string, string, string]("n", "a", "b")),
	} {
		encoded, err := cbor.Marshal(m)
		require.NoError(t, err)

		var decoded Mutation[string, string, string]
		require.NoError(t, cbor.Unmarshal(encoded, &decoded))

		assert.Equal(t, m, decoded)
	}
}

func mustMutation(t *testing.T, m Mutation[string, string, string], err error) Mutation[string, string, string] {
	t.Helper()
	require.NoError(t, err)
	return m
}
