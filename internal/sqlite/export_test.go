// Export/import engine tests: round-trip, merge accounting, conflicts.
package sqlite

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/loom/pkg/types"
)

func TestExportAll(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	doc, err := s.ExportAll()
	require.NoError(t, err)
	assert.Equal(t, types.ExportVersion, doc.Version)
	assert.NotEmpty(t, doc.ExportedAt)
	require.Len(t, doc.Records, 2)
	require.Len(t, doc.Relations, 1)
	assert.Equal(t, types.RelationContains, doc.Relations[0].Type)
	assert.Equal(t, col.ID, doc.Relations[0].FromID)
	assert.Equal(t, blk.ID, doc.Relations[0].ToID)
}

func TestExportIncludesTombstones(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "gone"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteCollection(col.ID))

	doc, err := s.ExportAll()
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	assert.NotNil(t, doc.Records[0].DeletedAt)
	assert.Nil(t, doc.Records[0].Payload)
}

func TestImportRoundTrip(t *testing.T) {
	src := setupStore(t)

	col, err := src.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	blk, err := src.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)
	_, err = src.AppendBlock(col.ID, types.BlockPayload{Role: "assistant", Content: "hi there"}, types.AppendOptions{ParentIDs: []string{blk.ID}})
	require.NoError(t, err)

	doc, err := src.ExportAll()
	require.NoError(t, err)

	dst := setupStore(t)
	summary, err := dst.ImportAll(doc)
	require.NoError(t, err)

	assert.Equal(t, len(doc.Records), summary.Records.Incoming)
	assert.Equal(t, len(doc.Records), summary.Records.Imported)
	assert.Zero(t, summary.Records.Conflicts)
	assert.Equal(t, len(doc.Relations), summary.Relations.Imported)
	assert.Zero(t, summary.Relations.MissingEndpoints)

	blocks, err := dst.CollectionBlocks(col.ID)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)

	// A second import of the same document changes nothing.
	summary, err = dst.ImportAll(doc)
	require.NoError(t, err)
	assert.Zero(t, summary.Records.Imported)
	assert.Equal(t, len(doc.Records), summary.Records.Skipped)
	assert.Zero(t, summary.Relations.Imported)
	assert.Equal(t, len(doc.Relations), summary.Relations.Skipped)
}

func TestImportRejectsWrongVersion(t *testing.T) {
	s := setupStore(t)

	_, err := s.ImportAll(&types.ExportDocument{Version: 99})
	assert.ErrorIs(t, err, types.ErrInvalidExport)

	_, err = s.ImportAll(nil)
	assert.ErrorIs(t, err, types.ErrInvalidExport)
}

func TestImportConflictKeepsExisting(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "mine"})
	require.NoError(t, err)

	doc, err := s.ExportAll()
	require.NoError(t, err)
	doc.Records[0].Payload = []byte(`{"title":"theirs","localTimestamp":""}`)

	summary, err := s.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Records.Conflicts)
	assert.Zero(t, summary.Records.Imported)

	rec, err := s.getRecord(col.ID)
	require.NoError(t, err)
	payload, err := rec.CollectionPayload()
	require.NoError(t, err)
	assert.Equal(t, "mine", payload.Title, "existing content wins")
}

func TestImportConflictLogCap(t *testing.T) {
	var buf bytes.Buffer
	s, err := Open(types.Config{DataDir: t.TempDir()}, zerolog.New(&buf))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	for i := 0; i < conflictLogCap+5; i++ {
		_, err := s.CreateCollection(types.CollectionPayload{Title: fmt.Sprintf("col %02d", i)})
		require.NoError(t, err)
	}

	doc, err := s.ExportAll()
	require.NoError(t, err)
	for i := range doc.Records {
		doc.Records[i].Payload = []byte(`{"title":"theirs","localTimestamp":""}`)
	}

	buf.Reset()
	summary, err := s.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, conflictLogCap+5, summary.Records.Conflicts)
	assert.Zero(t, summary.Records.Imported)

	logs := buf.String()
	assert.Equal(t, conflictLogCap, strings.Count(logs, "import conflict: existing content wins"))
	assert.Equal(t, 1, strings.Count(logs, "further import conflicts suppressed"))
	assert.Contains(t, logs, `"more":5`)
}

func TestImportDanglingRelation(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)

	doc := &types.ExportDocument{
		Version: types.ExportVersion,
		Relations: []types.ExportRelation{{
			ID:        "rel_dangling_000000000",
			Type:      types.RelationContains,
			FromID:    col.ID,
			ToID:      "blk_never_existed_0000",
			CreatedAt: "2026-01-01T00:00:00Z",
		}},
	}

	summary, err := s.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Relations.MissingEndpoints)
	assert.Zero(t, summary.Relations.Imported)
}

func TestImportTombstonedEndpointIsDangling(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "live"})
	require.NoError(t, err)
	gone, err := s.CreateCollection(types.CollectionPayload{Title: "gone"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(gone.ID, types.BlockPayload{Role: "user", Content: "x"}, types.AppendOptions{})
	require.NoError(t, err)
	require.NoError(t, s.DeleteCollection(gone.ID))

	doc := &types.ExportDocument{
		Version: types.ExportVersion,
		Relations: []types.ExportRelation{{
			ID:        "rel_to_tombstone_00000",
			Type:      types.RelationContains,
			FromID:    col.ID,
			ToID:      blk.ID,
			CreatedAt: "2026-01-01T00:00:00Z",
		}},
	}

	summary, err := s.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Relations.MissingEndpoints)
}

func TestImportDuplicateEntriesInDocument(t *testing.T) {
	dst := setupStore(t)
	src := setupStore(t)

	col, err := src.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	_, err = src.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	doc, err := src.ExportAll()
	require.NoError(t, err)
	doc.Records = append(doc.Records, doc.Records[0])
	doc.Relations = append(doc.Relations, doc.Relations[0])

	summary, err := dst.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Records.Duplicates)
	assert.Equal(t, 2, summary.Records.Imported)
	assert.Equal(t, 1, summary.Relations.Duplicates)
	assert.Equal(t, 1, summary.Relations.Imported)
}

func TestImportDuplicateEdgeDifferentID(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	// Same (type, from, to) key under a fresh ID is a duplicate edge, not a
	// second relation.
	doc := &types.ExportDocument{
		Version: types.ExportVersion,
		Relations: []types.ExportRelation{{
			ID:        "rel_other_id_000000000",
			Type:      types.RelationContains,
			FromID:    col.ID,
			ToID:      blk.ID,
			CreatedAt: "2026-01-01T00:00:00Z",
		}},
	}

	summary, err := s.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Relations.Duplicates)
	assert.Zero(t, summary.Relations.Imported)
}

func TestImportMalformedRecordCountsConflict(t *testing.T) {
	s := setupStore(t)

	doc := &types.ExportDocument{
		Version: types.ExportVersion,
		Records: []types.ExportRecord{
			{ID: "", Type: types.RecordTypeBlock, CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z"},
			{ID: "blk_bad_time_00000000", Type: types.RecordTypeBlock, CreatedAt: "yesterday", UpdatedAt: "2026-01-01T00:00:00Z"},
			{ID: "col_bad_type_00000000", Type: "folder", CreatedAt: "2026-01-01T00:00:00Z", UpdatedAt: "2026-01-01T00:00:00Z"},
		},
	}

	summary, err := s.ImportAll(doc)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Records.Conflicts)
	assert.Zero(t, summary.Records.Imported)
}

func TestImportInvalidatesIndexes(t *testing.T) {
	dst := setupStore(t)
	src := setupStore(t)

	// Make the destination's collection index ready, then import.
	_, err := dst.CreateCollection(types.CollectionPayload{Title: "local"})
	require.NoError(t, err)
	dst.Sync()
	_, err = dst.ListCollections(0)
	require.NoError(t, err)

	_, err = src.CreateCollection(types.CollectionPayload{Title: "imported"})
	require.NoError(t, err)
	doc, err := src.ExportAll()
	require.NoError(t, err)

	_, err = dst.ImportAll(doc)
	require.NoError(t, err)

	ready, err := dst.indexReady(indexCollections)
	require.NoError(t, err)
	assert.False(t, ready)

	cols, err := dst.ListCollections(0)
	require.NoError(t, err)
	assert.Len(t, cols, 2, "imported collection visible after rebuild")
}
