package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/argflow-go/internal/document"
)

func setupTestBadgerBackend(t *testing.T) (*BadgerBackend, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "badger")

	backend := NewBadgerBackend()
	err := backend.Initialize(dbPath, false)
	require.NoError(t, err)

	cleanup := func() {
		backend.Close()
	}

	return backend, cleanup
}

func textDoc(name string, texts map[string]string) *document.Document {
	doc := document.New(name)
	for id, text := range texts {
		doc.Nodes[id] = &document.Node{
			NodeType:    document.NodeRegular,
			ContentType: document.ContentString,
			Payload:     document.TextPayload(text),
			Children:    map[string]document.Child{},
		}
	}
	return doc
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "badger")

		backend := NewBadgerBackend()
		err := backend.Initialize(dbPath, false)

		assert.NoError(t, err)
		assert.NotNil(t, backend.db)
		assert.True(t, backend.initialized)

		backend.Close()
	})

	t.Run("InMemory", func(t *testing.T) {
		backend := NewBadgerBackend()
		require.NoError(t, backend.Initialize("", false))
		defer backend.Close()

		assert.Equal(t, 0, backend.ExplanationCount())
	})

	t.Run("ReopenKeepsCount", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "badger")

		backend1 := NewBadgerBackend()
		require.NoError(t, backend1.Initialize(dbPath, false))
		require.NoError(t, backend1.IndexExplanation(context.Background(),
			Ref{Model: "m", Name: "e"}, textDoc("e", map[string]string{"1": "leaf"})))
		backend1.Close()

		backend2 := NewBadgerBackend()
		require.NoError(t, backend2.Initialize(dbPath, true))
		defer backend2.Close()
		assert.Equal(t, 1, backend2.ExplanationCount())
	})

	t.Run("NotInitialized", func(t *testing.T) {
		_, err := NewBadgerBackend().Search(context.Background(), "x", 1)
		assert.Error(t, err)
	})
}

func TestBadgerBackend_Search(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	carrot := Ref{Model: "vegetables", Name: "carrot"}
	leaf := Ref{Model: "vegetables", Name: "leaf"}
	require.NoError(t, backend.IndexExplanation(ctx, carrot, textDoc("carrot", map[string]string{
		"1": "orange colour",
		"2": "round shape",
	})))
	require.NoError(t, backend.IndexExplanation(ctx, leaf, textDoc("leaf", map[string]string{
		"1": "green colour",
	})))

	results, err := backend.Search(ctx, "colour", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, carrot, results[0].Ref)
	assert.Equal(t, "1", results[0].NodeID)
	assert.Equal(t, "orange colour", results[0].Snippet)
	assert.Equal(t, leaf, results[1].Ref)

	results, err = backend.Search(ctx, "orange shape", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = backend.Search(ctx, "colour", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = backend.Search(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBadgerBackend_SearchCorruptEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	carrot := Ref{Model: "vegetables", Name: "carrot"}

	setup := func(t *testing.T) *BadgerBackend {
		backend, cleanup := setupTestBadgerBackend(t)
		t.Cleanup(cleanup)
		require.NoError(t, backend.IndexExplanation(ctx, carrot, textDoc("carrot", map[string]string{
			"1": "orange colour",
		})))
		return backend
	}
	overwrite := func(t *testing.T, b *BadgerBackend, key []byte, value string) {
		require.NoError(t, b.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, []byte(value))
		}))
	}

	t.Run("Frequency", func(t *testing.T) {
		t.Parallel()
		b := setup(t)
		overwrite(t, b, tokenKey("orange", carrot.String(), "1"), "often")

		_, err := b.Search(ctx, "orange", 10)
		assert.ErrorContains(t, err, "reading frequency")
	})

	t.Run("Metadata", func(t *testing.T) {
		t.Parallel()
		b := setup(t)
		overwrite(t, b, metaKey(carrot.String(), "1"), "{")

		_, err := b.Search(ctx, "orange", 10)
		assert.ErrorContains(t, err, "decoding vegetables/carrot node 1")
	})
}

func TestBadgerBackend_Reindex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	ref := Ref{Model: "m", Name: "e"}
	require.NoError(t, backend.IndexExplanation(ctx, ref, textDoc("e", map[string]string{"1": "orange"})))
	require.NoError(t, backend.IndexExplanation(ctx, ref, textDoc("e", map[string]string{"1": "purple"})))

	assert.Equal(t, 1, backend.ExplanationCount())

	results, err := backend.Search(ctx, "orange", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = backend.Search(ctx, "purple", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBadgerBackend_RemoveExplanation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	ref := Ref{Model: "m", Name: "e"}
	require.NoError(t, backend.IndexExplanation(ctx, ref, textDoc("e", map[string]string{"1": "orange"})))
	require.NoError(t, backend.RemoveExplanation(ctx, ref))
	require.NoError(t, backend.RemoveExplanation(ctx, ref))

	assert.Equal(t, 0, backend.ExplanationCount())
	refs, err := backend.Refs(ctx)
	require.NoError(t, err)
	assert.Empty(t, refs)

	results, err := backend.Search(ctx, "orange", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBadgerBackend_BulkLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	stale := Ref{Model: "old", Name: "gone"}
	require.NoError(t, backend.IndexExplanation(ctx, stale, textDoc("gone", map[string]string{"1": "stale"})))

	err := backend.BulkLoad(ctx, map[Ref]*document.Document{
		{Model: "b", Name: "two"}: textDoc("two", map[string]string{"x": "beta"}),
		{Model: "a", Name: "one"}: textDoc("one", map[string]string{"x": "alpha"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.ExplanationCount())
	refs, err := backend.Refs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Ref{{Model: "a", Name: "one"}, {Model: "b", Name: "two"}}, refs)

	results, err := backend.Search(ctx, "stale", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
