package agraphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLogStore(t *testing.T) *LogStore[string, string, string] {
	t.Helper()

	store, err := OpenLogStore[string, string, string]("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestLogStoreAppendAndGet(t *testing.T) {
	store := openTestLogStore(t)

	mutation, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	require.NoError(t, store.Append(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation}))

	entry, found, err := store.Get(mutation.Hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, entry.Committed)
	assert.Equal(t, mutation, entry.Mutation)
}

func TestLogStoreAppendFailsOnDuplicateHash(t *testing.T) {
	store := openTestLogStore(t)

	mutation, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	require.NoError(t, store.Append(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation}))

	err = store.Append(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteLogError)

	entry, found, getErr := store.Get(mutation.Hash)
	require.NoError(t, getErr)
	require.True(t, found)
	assert.False(t, entry.Committed)
}

func TestLogStoreGetMissing(t *testing.T) {
	store := openTestLogStore(t)

	_, found, err := store.Get("does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLogStoreCommitUpsertsOverExistingAppend(t *testing.T) {
	store := openTestLogStore(t)

	mutation, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	require.NoError(t, store.Append(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation}))
	require.NoError(t, store.Commit(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation}))

	entry, found, err := store.Get(mutation.Hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.Committed)
}

func TestLogStoreCommitInsertsDirectlyWhenNoPriorAppend(t *testing.T) {
	store := openTestLogStore(t)

	mutation, err := NewAddNode[string, string, string]("node1", "a", "hello")
	require.NoError(t, err)

	require.NoError(t, store.Commit(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation}))

	entry, found, err := store.Get(mutation.Hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.Committed)
	assert.Equal(t, mutation, entry.Mutation)
}

func TestLogStoreAll(t *testing.T) {
	store := openTestLogStore(t)

	var hashes []string

	for _, key := range []string{"a", "b", "c"} {
		mutation, err := NewAddNode[string, string, string]("node1", key, key)
		require.NoError(t, err)
		require.NoError(t, store.Append(LogEntry[string, string, string]{Hash: mutation.Hash, Mutation: mutation}))
		hashes = append(hashes, mutation.Hash)
	}

	entries, err := store.All()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.Hash] = true
	}
	for _, h := range hashes {
		assert.True(t, seen[h])
	}
}
