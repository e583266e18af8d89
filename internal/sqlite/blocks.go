// Block operations: append with idempotent replay, ordered reads, saved
// system prompt deletion.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/strandlabs/loom/internal/ids"
	"github.com/strandlabs/loom/internal/order"
	"github.com/strandlabs/loom/pkg/types"
)

// AppendBlock creates a live block, a contains edge from the collection,
// and one parent edge per supplied parent ID, atomically.
//
// When opts.RecordID is set and a record with that ID already exists, the
// call is treated as a replay: an existing live block with an identical
// payload is returned unchanged; anything else fails with ErrConflict so a
// divergent append is never silently overwritten.
func (s *Store) AppendBlock(collectionID string, payload types.BlockPayload, opts types.AppendOptions) (*types.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.liveCollection(collectionID)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, fmt.Errorf("collection %s: %w", collectionID, types.ErrNotFound)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding block payload: %w", err)
	}

	if opts.RecordID != "" {
		existing, err := s.getRecord(opts.RecordID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Type == types.RecordTypeBlock && existing.Live() && types.PayloadEqual(existing.Payload, encoded) {
				return existing, nil
			}
			return nil, fmt.Errorf("record %s already exists with divergent content: %w", opts.RecordID, types.ErrConflict)
		}
	}

	// Relations must never point at a missing or tombstoned endpoint.
	for _, parentID := range opts.ParentIDs {
		parent, err := s.liveBlock(parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent block %s: %w", parentID, types.ErrNotFound)
		}
	}

	now := s.now().UTC()
	blockID := opts.RecordID
	if blockID == "" {
		blockID = ids.New(ids.PrefixBlock)
	}
	rec := &types.Record{
		ID:        blockID,
		Type:      types.RecordTypeBlock,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   encoded,
	}

	rels := []*types.Relation{{
		ID:        derivedRelationID(types.RelationContains, collectionID, blockID),
		Type:      types.RelationContains,
		FromID:    collectionID,
		ToID:      blockID,
		CreatedAt: now,
	}}
	for _, parentID := range opts.ParentIDs {
		rels = append(rels, &types.Relation{
			ID:        derivedRelationID(types.RelationParent, blockID, parentID),
			Type:      types.RelationParent,
			FromID:    blockID,
			ToID:      parentID,
			CreatedAt: now,
		})
	}

	err = s.withTx(func(tx *sql.Tx) error {
		if err := insertRecordTx(tx, rec); err != nil {
			return err
		}
		for _, rel := range rels {
			if err := insertRelationTx(tx, rel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, rel := range rels {
		s.enqueueRelationInsert(rel)
	}
	s.enqueueSearchInsert(collectionID, rec)
	return rec, nil
}

// CollectionBlocks returns the live blocks of a collection in stable
// parent-before-child order, falling back to creation-time order for
// cycles and ties.
func (s *Store) CollectionBlocks(collectionID string) ([]*types.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	blockIDs, err := s.RelationTargets(collectionID, types.RelationContains)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*types.Record, len(blockIDs))
	nodes := make([]order.Block, 0, len(blockIDs))
	for _, id := range blockIDs {
		blk, err := s.liveBlock(id)
		if err != nil {
			return nil, err
		}
		if blk == nil {
			continue
		}
		parents, err := s.RelationTargets(id, types.RelationParent)
		if err != nil {
			return nil, err
		}
		byID[id] = blk
		nodes = append(nodes, order.Block{
			ID:        id,
			CreatedAt: blk.CreatedAt,
			ParentIDs: parents,
		})
	}

	ordered := order.Sort(nodes)
	blocks := make([]*types.Record, 0, len(ordered))
	for _, id := range ordered {
		blocks = append(blocks, byID[id])
	}
	return blocks, nil
}

// DeleteSavedSystemPromptBlock tombstones a saved system prompt: a live
// system-role block whose only relations are outgoing source edges. Those
// edges are removed here and their entries dropped from the relation index;
// the exact relation IDs are known, so no rebuild is needed. Returns false
// without mutation when any precondition fails.
func (s *Store) DeleteSavedSystemPromptBlock(blockID string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	blk, err := s.liveBlock(blockID)
	if err != nil {
		return false, err
	}
	if blk == nil {
		return false, nil
	}
	payload, err := blk.BlockPayload()
	if err != nil {
		return false, fmt.Errorf("decoding block %s: %w", blockID, err)
	}
	if payload.Role != "system" {
		return false, nil
	}

	rels, err := relationsTouching(s.db, blockID)
	if err != nil {
		return false, err
	}
	relIDs := make([]string, 0, len(rels))
	for _, rel := range rels {
		if rel.Type != types.RelationSource || rel.FromID != blockID {
			return false, nil
		}
		relIDs = append(relIDs, rel.ID)
	}

	err = s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"DELETE FROM relations WHERE from_id = ? OR to_id = ?",
			blockID, blockID,
		); err != nil {
			return fmt.Errorf("deleting relations of %s: %w", blockID, err)
		}
		return tombstoneTx(tx, blockID, s.now().UTC())
	})
	if err != nil {
		return false, err
	}

	s.cache.Remove(blockID)
	s.enqueueRelationIndexDeletes(relIDs)
	return true, nil
}

// SavedSystemPrompts lists live system-role blocks whose only relations
// are outgoing source edges, newest first.
func (s *Store) SavedSystemPrompts() ([]*types.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT `+recordColumns+` FROM records b
         WHERE b.record_type = ? AND b.deleted_at IS NULL
           AND NOT EXISTS (
             SELECT 1 FROM relations r
             WHERE r.to_id = b.record_id
                OR (r.from_id = b.record_id AND r.relation_type != ?)
           )
         ORDER BY b.created_at DESC, b.record_id DESC`,
		types.RecordTypeBlock, types.RelationSource,
	)
	if err != nil {
		return nil, fmt.Errorf("querying saved prompts: %w", err)
	}
	candidates, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	var prompts []*types.Record
	for _, blk := range candidates {
		payload, err := blk.BlockPayload()
		if err != nil {
			continue
		}
		if payload.Role == "system" {
			prompts = append(prompts, blk)
		}
	}
	return prompts, nil
}
