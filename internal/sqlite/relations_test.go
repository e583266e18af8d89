// Ensure-relation and relation traversal tests.
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandlabs/loom/pkg/types"
)

func TestEnsureCollectionContainsBlock(t *testing.T) {
	s := setupStore(t)

	first, err := s.CreateCollection(types.CollectionPayload{Title: "first"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(first.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	second, err := s.CreateCollection(types.CollectionPayload{Title: "second"})
	require.NoError(t, err)

	result, err := s.EnsureCollectionContainsBlock(second.ID, blk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultLinked, result)

	result, err = s.EnsureCollectionContainsBlock(second.ID, blk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultAlreadyLinked, result)

	// Exactly one edge exists despite the repeated call.
	rels, err := relationsTouching(s.db, second.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	s.Sync()
	targets, err := s.RelationTargets(second.ID, types.RelationContains)
	require.NoError(t, err)
	assert.Equal(t, []string{blk.ID}, targets)
}

func TestEnsureCollectionContainsBlockMissing(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: "hello"}, types.AppendOptions{})
	require.NoError(t, err)

	result, err := s.EnsureCollectionContainsBlock("col_does_not_exist_0000", blk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultMissing, result)

	result, err = s.EnsureCollectionContainsBlock(col.ID, "blk_does_not_exist_000")
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultMissing, result)

	// Tombstoned endpoints count as missing.
	gone, err := s.CreateCollection(types.CollectionPayload{Title: "gone"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteCollection(gone.ID))

	result, err = s.EnsureCollectionContainsBlock(gone.ID, blk.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultMissing, result)
}

func TestEnsureBlockSource(t *testing.T) {
	s := setupStore(t)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)
	origin, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "assistant", Content: "origin"}, types.AppendOptions{})
	require.NoError(t, err)
	derived, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "system", Content: "derived"}, types.AppendOptions{})
	require.NoError(t, err)

	result, err := s.EnsureBlockSource(derived.ID, origin.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultLinked, result)

	result, err = s.EnsureBlockSource(derived.ID, origin.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultAlreadyLinked, result)

	result, err = s.EnsureBlockSource(derived.ID, "blk_does_not_exist_000")
	require.NoError(t, err)
	assert.Equal(t, types.LinkResultMissing, result)

	s.Sync()
	targets, err := s.RelationTargets(derived.ID, types.RelationSource)
	require.NoError(t, err)
	assert.Equal(t, []string{origin.ID}, targets)
}

func TestRelationTargetsOrder(t *testing.T) {
	s := setupStore(t)
	fakeClock(s, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.Second)

	col, err := s.CreateCollection(types.CollectionPayload{Title: "chat"})
	require.NoError(t, err)

	var blockIDs []string
	for _, content := range []string{"one", "two", "three"} {
		blk, err := s.AppendBlock(col.ID, types.BlockPayload{Role: "user", Content: content}, types.AppendOptions{})
		require.NoError(t, err)
		blockIDs = append(blockIDs, blk.ID)
	}
	s.Sync()

	targets, err := s.RelationTargets(col.ID, types.RelationContains)
	require.NoError(t, err)
	assert.Equal(t, blockIDs, targets)
}

func TestRelationTargetsInvalidType(t *testing.T) {
	s := setupStore(t)

	_, err := s.RelationTargets("col_whatever_00000000", "follows")
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestDerivedRelationIDDeterministic(t *testing.T) {
	a := derivedRelationID(types.RelationContains, "col_a", "blk_b")
	b := derivedRelationID(types.RelationContains, "col_a", "blk_b")
	assert.Equal(t, a, b)

	c := derivedRelationID(types.RelationParent, "col_a", "blk_b")
	assert.NotEqual(t, a, c)

	d := derivedRelationID(types.RelationContains, "col_a", "blk_c")
	assert.NotEqual(t, a, d)
}
