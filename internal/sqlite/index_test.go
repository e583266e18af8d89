// Derived index rebuild and self-healing tests.
package sqlite

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/loom/pkg/types"
)

func TestIndexRebuildOnFirstRead(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	// No reader has touched the relation index yet; the first call finds no
	// ready flag and rebuilds from the primary store.
	targets, err := s.RelationTargets(col.ID, types.RelationContains)
	require.NoError(t, err)
	assert.Equal(t, []string{blk.ID}, targets)

	ready, err := s.indexReady(indexRelations)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestIndexSelfHealsAfterInvalidation(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	var blockIDs []string
	for _, content := range []string{"one", "two"} {
		blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: content}, types.AppendOptions{})
		require.NoError(t, err)
		blockIDs = append(blockIDs, blk.ID)
	}
	s.Sync()

	before, err := s.RelationTargets(col.ID, types.RelationContains)
	require.NoError(t, err)
	require.Equal(t, blockIDs, before)

	// Sabotage: wipe the index contents and the ready flag. The next read
	// must rebuild and return the same answer.
	_, err = s.db.Exec("DELETE FROM relation_index")
	require.NoError(t, err)
	s.invalidateIndex(indexRelations)

	after, err := s.RelationTargets(col.ID, types.RelationContains)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	ready, err := s.indexReady(indexRelations)
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestCollectionIndexSelfHeals(t *testing.T) {
	s := setupStore(t)
	fakeClock(s, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.Second)

	for _, title := range []string{"a", "b"} {
		_, err := s.CreateCollection(types.CollectionPayload{Title: title})
		require.NoError(t, err)
	}
	s.Sync()

	before, err := s.ListCollections(0)
	require.NoError(t, err)
	require.Len(t, before, 2)

	_, err = s.db.Exec("DELETE FROM collection_index")
	require.NoError(t, err)
	s.invalidateIndex(indexCollections)

	after, err := s.ListCollections(0)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.Equal(t, before[1].ID, after[1].ID)
}

func TestSearchIndexSelfHeals(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "the quick brown fox"}, types.AppendOptions{})
	require.NoError(t, err)
	s.Sync()

	hits, err := s.SearchBlocks("quick fox", types.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, blk.ID, hits[0].BlockID)

	for _, stmt := range []string{"DELETE FROM search_text", "DELETE FROM search_terms"} {
		_, err = s.db.Exec(stmt)
		require.NoError(t, err)
	}
	s.invalidateIndex(indexSearch)

	hits, err = s.SearchBlocks("quick fox", types.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, blk.ID, hits[0].BlockID)
}

func TestDeleteCollectionInvalidatesIndexes(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	_, err = s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	// Mark every index ready.
	_, err = s.ListCollections(0)
	require.NoError(t, err)
	_, err = s.RelationTargets(col.ID, types.RelationContains)
	require.NoError(t, err)
	_, err = s.SearchBlocks("hello", types.SearchOptions{})
	require.NoError(t, err)

	require.NoError(t, s.DeleteCollection(col.ID))
	s.Sync()

	for _, name := range allIndexes {
		ready, err := s.indexReady(name)
		require.NoError(t, err)
		assert.False(t, ready, "index %s must be flagged for rebuild", name)
	}

	// Reads after the cascade see the post-delete world.
	cols, err := s.ListCollections(0)
	require.NoError(t, err)
	assert.Empty(t, cols)

	hits, err := s.SearchBlocks("hello", types.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReopenRecoversLostIndexUpdates(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(types.Config{DataDir: dir}, zerolog.Nop())
	require.NoError(t, err)

	first, err := s.CreateCollection(types.CollectionPayload{Title: "first"})
	require.NoError(t, err)
	s.Sync()
	_, err = s.ListCollections(0)
	require.NoError(t, err)

	// Reproduce a crash between the primary-store commit and the worker
	// applying the queued index update: the record row is committed, the
	// index entry is lost, and the persisted ready flag is still set.
	now := s.now().UTC()
	crashed := &types.Record{
		ID:        "col_crashed_0000000000",
		Type:      types.RecordTypeCollection,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   []byte(`{"title":"crashed","localTimestamp":""}`),
	}
	err = s.withTx(func(tx *sql.Tx) error { return insertRecordTx(tx, crashed) })
	require.NoError(t, err)

	ready, err := s.indexReady(indexCollections)
	require.NoError(t, err)
	require.True(t, ready, "crash precondition: flag set over a stale index")
	require.NoError(t, s.Close())

	s2, err := Open(types.Config{DataDir: dir}, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()

	// Reopening drops the stale flag so the first read rebuilds from the
	// primary store and the committed collection reappears.
	cols, err := s2.ListCollections(0)
	require.NoError(t, err)
	var colIDs []string
	for _, col := range cols {
		colIDs = append(colIDs, col.ID)
	}
	assert.Contains(t, colIDs, crashed.ID)
	assert.Contains(t, colIDs, first.ID)
}

func TestSyncDrainsQueuedWork(t *testing.T) {
	s := setupStore(t)

	// Make the relation index ready so appends go through the incremental
	// path rather than a rebuild.
	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	_, err = s.RelationTargets(col.ID, types.RelationContains)
	require.NoError(t, err)

	blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "queued"}, types.AppendOptions{})
	require.NoError(t, err)
	s.Sync()

	var count int
	err = s.db.QueryRow(
		"SELECT COUNT(*) FROM relation_index WHERE from_id = ? AND to_id = ?",
		col.ID, blk.ID,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
