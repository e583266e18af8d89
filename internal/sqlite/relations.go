// Relation access and the ensure-relation operations.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/strandlabs/loom/internal/ids"
	"github.com/strandlabs/loom/pkg/types"
)

// relationColumns is the SELECT column list matched by hydrateRelation.
const relationColumns = "relation_id, relation_type, from_id, to_id, created_at"

// hydrateRelation converts one relations row into a *types.Relation.
func hydrateRelation(row rowScanner) (*types.Relation, error) {
	var (
		r         types.Relation
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.Type, &r.FromID, &r.ToID, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("relation %s created_at: %w", r.ID, err)
	}
	return &r, nil
}

// derivedRelationID computes the deterministic ID for a contains or parent
// edge, so re-asserting the same edge is a no-op rather than a duplicate.
func derivedRelationID(relationType, fromID, toID string) string {
	return ids.Derived(relationType, fromID+":"+toID)
}

// insertRelationTx inserts a relation row.
func insertRelationTx(tx *sql.Tx, rel *types.Relation) error {
	_, err := tx.Exec(
		"INSERT INTO relations (relation_id, relation_type, from_id, to_id, created_at) VALUES (?, ?, ?, ?, ?)",
		rel.ID, rel.Type, rel.FromID, rel.ToID, formatTime(rel.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting relation %s: %w", rel.ID, err)
	}
	return nil
}

// edgeExists reports whether a relation with the given (type, from, to)
// key is present.
func edgeExists(q querier, relationType, fromID, toID string) (bool, error) {
	var one int
	err := q.QueryRow(
		"SELECT 1 FROM relations WHERE relation_type = ? AND from_id = ? AND to_id = ?",
		relationType, fromID, toID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking edge existence: %w", err)
	}
	return true, nil
}

// relationsTouching returns every relation with id as either endpoint.
func relationsTouching(q querier, id string) ([]*types.Relation, error) {
	rows, err := q.Query(
		"SELECT "+relationColumns+" FROM relations WHERE from_id = ? OR to_id = ?",
		id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relations touching %s: %w", id, err)
	}
	defer rows.Close()

	var rels []*types.Relation
	for rows.Next() {
		rel, err := hydrateRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating relation: %w", err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}
	return rels, nil
}

// EnsureCollectionContainsBlock adds a contains edge from a live collection
// to a live block. Idempotent: an existing edge reports already_linked.
func (s *Store) EnsureCollectionContainsBlock(collectionID, blockID string) (types.LinkResult, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.liveCollection(collectionID)
	if err != nil {
		return "", err
	}
	blk, err := s.liveBlock(blockID)
	if err != nil {
		return "", err
	}
	if col == nil || blk == nil {
		return types.LinkResultMissing, nil
	}

	rel := &types.Relation{
		ID:        derivedRelationID(types.RelationContains, collectionID, blockID),
		Type:      types.RelationContains,
		FromID:    collectionID,
		ToID:      blockID,
		CreatedAt: s.now(),
	}

	var result types.LinkResult
	err = s.withTx(func(tx *sql.Tx) error {
		exists, err := edgeExists(tx, rel.Type, rel.FromID, rel.ToID)
		if err != nil {
			return err
		}
		if exists {
			result = types.LinkResultAlreadyLinked
			return nil
		}
		if err := insertRelationTx(tx, rel); err != nil {
			return err
		}
		result = types.LinkResultLinked
		return nil
	})
	if err != nil {
		return "", err
	}

	if result == types.LinkResultLinked {
		s.enqueueRelationInsert(rel)
		// The block's content is scoped per collection for search, so a
		// newly linked block gets indexed under this collection too.
		s.enqueueSearchInsert(collectionID, blk)
	}
	return result, nil
}

// EnsureBlockSource adds a source edge from a derived block to its
// originating block. Source edge IDs are random; uniqueness comes from the
// (type, from, to) key.
func (s *Store) EnsureBlockSource(blockID, sourceBlockID string) (types.LinkResult, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	blk, err := s.liveBlock(blockID)
	if err != nil {
		return "", err
	}
	src, err := s.liveBlock(sourceBlockID)
	if err != nil {
		return "", err
	}
	if blk == nil || src == nil {
		return types.LinkResultMissing, nil
	}

	rel := &types.Relation{
		ID:        ids.New(ids.PrefixRelation),
		Type:      types.RelationSource,
		FromID:    blockID,
		ToID:      sourceBlockID,
		CreatedAt: s.now(),
	}

	var result types.LinkResult
	err = s.withTx(func(tx *sql.Tx) error {
		exists, err := edgeExists(tx, rel.Type, rel.FromID, rel.ToID)
		if err != nil {
			return err
		}
		if exists {
			result = types.LinkResultAlreadyLinked
			return nil
		}
		if err := insertRelationTx(tx, rel); err != nil {
			return err
		}
		result = types.LinkResultLinked
		return nil
	})
	if err != nil {
		return "", err
	}

	if result == types.LinkResultLinked {
		s.enqueueRelationInsert(rel)
	}
	return result, nil
}

// RelationTargets answers "all to_id for (from_id, type)" from the relation
// index, ordered by relation creation time.
func (s *Store) RelationTargets(fromID, relationType string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if !types.ValidRelationType(relationType) {
		return nil, types.ErrInvalidData
	}
	if err := s.ensureIndexReady(indexRelations); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT to_id FROM relation_index WHERE from_id = ? AND relation_type = ? ORDER BY created_at, relation_id",
		fromID, relationType,
	)
	if err != nil {
		return nil, fmt.Errorf("querying relation index: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var toID string
		if err := rows.Scan(&toID); err != nil {
			return nil, fmt.Errorf("scanning relation target: %w", err)
		}
		targets = append(targets, toID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relation targets: %w", err)
	}
	return targets, nil
}
