// Collection operations: create, retitle, list, delete cascade.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/strandlabs/loom/internal/ids"
	"github.com/strandlabs/loom/pkg/types"
)

// CreateCollection inserts a live collection record and points the active
// collection setting at it, in one transaction.
func (s *Store) CreateCollection(payload types.CollectionPayload) (*types.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding collection payload: %w", err)
	}

	now := s.now().UTC()
	rec := &types.Record{
		ID:        ids.New(ids.PrefixCollection),
		Type:      types.RecordTypeCollection,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   encoded,
	}

	err = s.withTx(func(tx *sql.Tx) error {
		if err := insertRecordTx(tx, rec); err != nil {
			return err
		}
		return setSettingTx(tx, types.SettingActiveCollection, rec.ID)
	})
	if err != nil {
		return nil, err
	}

	s.enqueueCollectionInsert(rec, payload.Title)
	return rec, nil
}

// UpdateCollectionTitle sets the title of a live collection and bumps its
// UpdatedAt. Returns (nil, nil) when id does not resolve to a live
// collection.
func (s *Store) UpdateCollectionTitle(id, title string) (*types.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.liveCollection(id)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, nil
	}

	payload, err := col.CollectionPayload()
	if err != nil {
		return nil, fmt.Errorf("decoding collection %s: %w", id, err)
	}
	payload.Title = title

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding collection payload: %w", err)
	}

	now := s.now().UTC()
	err = s.withTx(func(tx *sql.Tx) error {
		return updatePayloadTx(tx, id, encoded, now)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Remove(id)

	updated := *col
	updated.Payload = encoded
	updated.UpdatedAt = now

	s.enqueueCollectionTitleUpdate(id, title)
	return &updated, nil
}

// ListCollections returns live collections newest-first from the recency
// index.
func (s *Store) ListCollections(limit int) ([]*types.Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := s.ensureIndexReady(indexCollections); err != nil {
		return nil, err
	}

	query := "SELECT collection_id FROM collection_index ORDER BY created_at DESC, collection_id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying collection index: %w", err)
	}
	var idList []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning collection index: %w", err)
		}
		idList = append(idList, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating collection index: %w", err)
	}
	rows.Close()

	cols := make([]*types.Record, 0, len(idList))
	for _, id := range idList {
		rec, err := s.getRecord(id)
		if err != nil {
			return nil, err
		}
		// The index may briefly be stale; skip anything no longer live.
		if rec == nil || !rec.Live() {
			continue
		}
		cols = append(cols, rec)
	}
	return cols, nil
}

// DeleteCollection tombstones a collection and cascades per the shared
// dependency rule: contained blocks survive when any other live record
// still references them by a contains or source edge; the rest are
// tombstoned. Every relation touching the collection or a tombstoned block
// is hard-deleted, the active pointer is cleared if it referenced this
// collection, and all derived indexes are invalidated for rebuild.
//
// No-op when id is not a live collection.
func (s *Store) DeleteCollection(id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.liveCollection(id)
	if err != nil {
		return err
	}
	if col == nil {
		return nil
	}

	err = s.withTx(func(tx *sql.Tx) error {
		now := s.now().UTC()

		if err := tombstoneTx(tx, id, now); err != nil {
			return err
		}

		contained, err := containedBlockIDsTx(tx, id)
		if err != nil {
			return err
		}

		// A contained block is shared, and must survive, when another
		// live record still points at it. Sharing is re-evaluated at each
		// deletion's own time; no transitive cascade.
		var doomed []string
		for _, blockID := range contained {
			shared, err := blockSharedTx(tx, blockID, id)
			if err != nil {
				return err
			}
			if !shared {
				doomed = append(doomed, blockID)
			}
		}

		for _, blockID := range doomed {
			if err := tombstoneTx(tx, blockID, now); err != nil {
				return err
			}
		}

		gone := append([]string{id}, doomed...)
		for _, recordID := range gone {
			if _, err := tx.Exec(
				"DELETE FROM relations WHERE from_id = ? OR to_id = ?",
				recordID, recordID,
			); err != nil {
				return fmt.Errorf("deleting relations of %s: %w", recordID, err)
			}
		}

		var active string
		if err := tx.QueryRow("SELECT value FROM kv WHERE key = ?", types.SettingActiveCollection).Scan(&active); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("reading active collection: %w", err)
		}
		if active != "" {
			var activeID string
			if err := json.Unmarshal([]byte(active), &activeID); err == nil && activeID == id {
				if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", types.SettingActiveCollection); err != nil {
					return fmt.Errorf("clearing active collection: %w", err)
				}
			}
		}

		return clearAllIndexFlagsTx(tx)
	})
	if err != nil {
		return err
	}

	s.cache.Purge()
	return nil
}

// containedBlockIDsTx returns the to_id of every contains edge from the
// collection.
func containedBlockIDsTx(tx *sql.Tx, collectionID string) ([]string, error) {
	rows, err := tx.Query(
		"SELECT to_id FROM relations WHERE relation_type = ? AND from_id = ?",
		types.RelationContains, collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying contained blocks: %w", err)
	}
	defer rows.Close()

	var blockIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning contained block: %w", err)
		}
		blockIDs = append(blockIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contained blocks: %w", err)
	}
	return blockIDs, nil
}

// blockSharedTx reports whether any live record other than excludeID still
// references the block through a contains or source edge.
func blockSharedTx(tx *sql.Tx, blockID, excludeID string) (bool, error) {
	var one int
	err := tx.QueryRow(
		`SELECT 1 FROM relations r
         JOIN records o ON o.record_id = r.from_id
         WHERE r.to_id = ? AND r.from_id != ?
           AND r.relation_type IN (?, ?)
           AND o.deleted_at IS NULL
         LIMIT 1`,
		blockID, excludeID, types.RelationContains, types.RelationSource,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking block sharing: %w", err)
	}
	return true, nil
}
