// Derived index layer: ready flags, full rebuilds, incremental updates.
//
// Writers hand incremental updates to a background worker and never wait
// for them; a failed update clears the index's ready flag instead of
// surfacing an error. Readers call ensureIndexReady before querying, paying
// a full rebuild when the flag is absent. This keeps index maintenance off
// the critical path of primary-store writes while staying self-healing.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/strandlabs/loom/pkg/types"
)

// indexTask is one unit of background index maintenance. A task with a nil
// apply function is a barrier: it only signals done, letting Sync wait for
// everything queued before it.
type indexTask struct {
	index string
	apply func(tx *sql.Tx) error
	done  chan struct{}
}

// indexWorker drains the task queue until Close.
func (s *Store) indexWorker() {
	defer s.wg.Done()
	for task := range s.indexCh {
		if task.apply != nil {
			if err := s.withTx(task.apply); err != nil {
				// Index maintenance is advisory: swallow the error,
				// clear the ready flag, and let the next reader rebuild.
				s.log.Warn().
					Err(err).
					Str("index", task.index).
					Msg("incremental index update failed; flagging for rebuild")
				s.invalidateIndex(task.index)
			}
		}
		if task.done != nil {
			close(task.done)
		}
	}
}

// enqueue hands a task to the worker. Tasks arriving after Close are
// dropped; their indexes will be rebuilt from the primary store anyway.
func (s *Store) enqueue(task indexTask) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		if task.done != nil {
			close(task.done)
		}
		return
	}
	s.indexCh <- task
}

// Sync blocks until every index update queued before the call has been
// applied. Used by readers that need read-after-write index visibility and
// by tests.
func (s *Store) Sync() {
	done := make(chan struct{})
	s.enqueue(indexTask{done: done})
	<-done
}

// indexReady reports whether the named index's ready flag is set.
func (s *Store) indexReady(name string) (bool, error) {
	var ready int
	err := s.db.QueryRow(
		"SELECT ready FROM index_meta WHERE index_name = ?", name,
	).Scan(&ready)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading index flag %s: %w", name, err)
	}
	return ready == 1, nil
}

// invalidateIndex clears the ready flag so the next reader rebuilds.
func (s *Store) invalidateIndex(name string) {
	if _, err := s.db.Exec("DELETE FROM index_meta WHERE index_name = ?", name); err != nil {
		s.log.Error().Err(err).Str("index", name).Msg("clearing index ready flag failed")
	}
}

// clearAllIndexFlagsTx drops every ready flag inside the caller's
// transaction. Used after operations that bypass incremental maintenance
// (collection delete cascade, import).
func clearAllIndexFlagsTx(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("clearing index flags: %w", err)
	}
	return nil
}

// ensureIndexReady rebuilds the named index from the primary store if its
// ready flag is absent. Readers call this before every index query.
func (s *Store) ensureIndexReady(name string) error {
	ready, err := s.indexReady(name)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check under the lock; a concurrent reader may have rebuilt.
	ready, err = s.indexReady(name)
	if err != nil {
		return err
	}
	if ready {
		return nil
	}

	s.log.Info().Str("index", name).Msg("rebuilding derived index")
	return s.withTx(func(tx *sql.Tx) error {
		switch name {
		case indexRelations:
			err = rebuildRelationIndexTx(tx)
		case indexCollections:
			err = rebuildCollectionIndexTx(tx)
		case indexSearch:
			err = rebuildSearchIndexTx(tx)
		default:
			err = fmt.Errorf("unknown index %q", name)
		}
		if err != nil {
			return err
		}
		return markIndexReadyTx(tx, name, formatTime(s.now()))
	})
}

// markIndexReadyTx sets the ready flag for name.
func markIndexReadyTx(tx *sql.Tx, name, builtAt string) error {
	_, err := tx.Exec(
		"INSERT INTO index_meta (index_name, ready, built_at) VALUES (?, 1, ?) ON CONFLICT(index_name) DO UPDATE SET ready = 1, built_at = excluded.built_at",
		name, builtAt,
	)
	if err != nil {
		return fmt.Errorf("setting index flag %s: %w", name, err)
	}
	return nil
}

// rebuildRelationIndexTx recomputes the relation adjacency index from the
// relations table.
func rebuildRelationIndexTx(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM relation_index"); err != nil {
		return fmt.Errorf("clearing relation index: %w", err)
	}
	_, err := tx.Exec(
		"INSERT INTO relation_index (from_id, relation_type, created_at, relation_id, to_id) SELECT from_id, relation_type, created_at, relation_id, to_id FROM relations",
	)
	if err != nil {
		return fmt.Errorf("rebuilding relation index: %w", err)
	}
	return nil
}

// rebuildCollectionIndexTx recomputes the collection-recency index from
// live collection records.
func rebuildCollectionIndexTx(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM collection_index"); err != nil {
		return fmt.Errorf("clearing collection index: %w", err)
	}

	rows, err := tx.Query(
		"SELECT "+recordColumns+" FROM records WHERE record_type = ? AND deleted_at IS NULL",
		types.RecordTypeCollection,
	)
	if err != nil {
		return fmt.Errorf("scanning collections: %w", err)
	}
	cols, err := collectRecords(rows)
	if err != nil {
		return err
	}

	for _, col := range cols {
		payload, err := col.CollectionPayload()
		if err != nil {
			return fmt.Errorf("decoding collection %s: %w", col.ID, err)
		}
		if err := insertCollectionIndexTx(tx, col.ID, payload.Title, formatTime(col.CreatedAt)); err != nil {
			return err
		}
	}
	return nil
}

// insertCollectionIndexTx adds one collection-recency entry.
func insertCollectionIndexTx(tx *sql.Tx, collectionID, title, createdAt string) error {
	_, err := tx.Exec(
		"INSERT INTO collection_index (created_at, collection_id, title) VALUES (?, ?, ?) ON CONFLICT(created_at, collection_id) DO UPDATE SET title = excluded.title",
		createdAt, collectionID, title,
	)
	if err != nil {
		return fmt.Errorf("inserting collection index entry %s: %w", collectionID, err)
	}
	return nil
}

// collectRecords materializes a record result set. Rows are closed before
// returning so callers can issue further statements on the same
// transaction.
func collectRecords(rows *sql.Rows) ([]*types.Record, error) {
	defer rows.Close()
	var recs []*types.Record
	for rows.Next() {
		rec, err := hydrateRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating record: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return recs, nil
}

// enqueueRelationInsert queues an incremental relation-index entry.
func (s *Store) enqueueRelationInsert(rel *types.Relation) {
	createdAt := formatTime(rel.CreatedAt)
	relCopy := *rel
	s.enqueue(indexTask{
		index: indexRelations,
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(
				"INSERT OR REPLACE INTO relation_index (from_id, relation_type, created_at, relation_id, to_id) VALUES (?, ?, ?, ?, ?)",
				relCopy.FromID, relCopy.Type, createdAt, relCopy.ID, relCopy.ToID,
			)
			return err
		},
	})
}

// enqueueRelationIndexDeletes queues removal of relation-index entries for
// hard-deleted relations.
func (s *Store) enqueueRelationIndexDeletes(relationIDs []string) {
	if len(relationIDs) == 0 {
		return
	}
	idsCopy := append([]string(nil), relationIDs...)
	s.enqueue(indexTask{
		index: indexRelations,
		apply: func(tx *sql.Tx) error {
			for _, id := range idsCopy {
				if _, err := tx.Exec("DELETE FROM relation_index WHERE relation_id = ?", id); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// enqueueCollectionInsert queues an incremental collection-recency entry.
func (s *Store) enqueueCollectionInsert(col *types.Record, title string) {
	collectionID := col.ID
	createdAt := formatTime(col.CreatedAt)
	s.enqueue(indexTask{
		index: indexCollections,
		apply: func(tx *sql.Tx) error {
			return insertCollectionIndexTx(tx, collectionID, title, createdAt)
		},
	})
}

// enqueueCollectionTitleUpdate queues a title refresh for an existing
// collection-recency entry.
func (s *Store) enqueueCollectionTitleUpdate(collectionID, title string) {
	s.enqueue(indexTask{
		index: indexCollections,
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(
				"UPDATE collection_index SET title = ? WHERE collection_id = ?",
				title, collectionID,
			)
			return err
		},
	})
}

// enqueueSearchInsert queues full-text indexing of one (collection, block)
// pair.
func (s *Store) enqueueSearchInsert(collectionID string, blk *types.Record) {
	payload, err := blk.BlockPayload()
	if err != nil {
		s.log.Warn().Err(err).Str("block", blk.ID).Msg("skipping search indexing of undecodable block")
		return
	}
	blockID := blk.ID
	createdAt := formatTime(blk.CreatedAt)
	role := payload.Role
	content := payload.Content
	s.enqueue(indexTask{
		index: indexSearch,
		apply: func(tx *sql.Tx) error {
			return indexBlockContentTx(tx, collectionID, blockID, role, content, createdAt)
		},
	})
}
