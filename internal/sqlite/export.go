// Export/import engine: full-snapshot serialization and best-effort merge.
//
// Import never aborts on structural issues; duplicates, conflicts, and
// dangling relations are counted in the summary and logged (capped), and
// everything acceptable is written in one transaction. Incremental index
// maintenance is bypassed entirely; all ready flags are cleared so readers
// rebuild from the merged primary store.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/strandlabs/loom/pkg/types"
)

// conflictLogCap bounds per-import conflict log lines; the remainder is
// reported as a single count.
const conflictLogCap = 20

// ExportAll serializes both primary tables into a portable document. No
// filtering, no index interaction.
func (s *Store) ExportAll() (*types.ExportDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT " + recordColumns + " FROM records ORDER BY created_at, record_id")
	if err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	relRows, err := s.db.Query("SELECT " + relationColumns + " FROM relations ORDER BY created_at, relation_id")
	if err != nil {
		return nil, fmt.Errorf("scanning relations: %w", err)
	}
	defer relRows.Close()
	var relations []*types.Relation
	for relRows.Next() {
		rel, err := hydrateRelation(relRows)
		if err != nil {
			return nil, fmt.Errorf("hydrating relation: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := relRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}

	doc := &types.ExportDocument{
		Version:    types.ExportVersion,
		ExportedAt: formatTime(s.now()),
		Records:    make([]types.ExportRecord, 0, len(records)),
		Relations:  make([]types.ExportRelation, 0, len(relations)),
	}
	for _, rec := range records {
		out := types.ExportRecord{
			ID:        rec.ID,
			Type:      rec.Type,
			CreatedAt: formatTime(rec.CreatedAt),
			UpdatedAt: formatTime(rec.UpdatedAt),
			Payload:   rec.Payload,
		}
		if rec.DeletedAt != nil {
			deletedAt := formatTime(*rec.DeletedAt)
			out.DeletedAt = &deletedAt
		}
		doc.Records = append(doc.Records, out)
	}
	for _, rel := range relations {
		doc.Relations = append(doc.Relations, types.ExportRelation{
			ID:        rel.ID,
			Type:      rel.Type,
			FromID:    rel.FromID,
			ToID:      rel.ToID,
			CreatedAt: formatTime(rel.CreatedAt),
		})
	}
	return doc, nil
}

// ImportAll merges an external document into the primary store. Existing
// content always wins on conflict; the summary reports what happened to
// every incoming entity.
func (s *Store) ImportAll(doc *types.ExportDocument) (*types.ImportSummary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if doc == nil || doc.Version != types.ExportVersion {
		return nil, fmt.Errorf("unsupported export version: %w", types.ErrInvalidExport)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	summary := &types.ImportSummary{}
	summary.Records.Incoming = len(doc.Records)
	summary.Relations.Incoming = len(doc.Relations)

	conflictsLogged := 0
	logConflict := func(kind, id string) {
		if conflictsLogged < conflictLogCap {
			s.log.Warn().Str("kind", kind).Str("id", id).Msg("import conflict: existing content wins")
		}
		conflictsLogged++
	}

	// Record pass: decide every incoming record before writing anything.
	var newRecords []*types.Record
	liveNew := make(map[string]bool)
	importedIDs := make(map[string]bool)
	seenRecordIDs := make(map[string]bool, len(doc.Records))
	for _, in := range doc.Records {
		if seenRecordIDs[in.ID] {
			summary.Records.Duplicates++
			continue
		}
		seenRecordIDs[in.ID] = true

		rec, err := importRecord(in)
		if err != nil {
			logConflict("record", in.ID)
			summary.Records.Conflicts++
			continue
		}

		existing, err := getRecordQ(s.db, in.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if recordsIdentical(existing, rec) {
				summary.Records.Skipped++
			} else {
				logConflict("record", in.ID)
				summary.Records.Conflicts++
			}
			continue
		}

		newRecords = append(newRecords, rec)
		importedIDs[rec.ID] = true
		if rec.Live() {
			liveNew[rec.ID] = true
		}
		summary.Records.Imported++
	}

	// Relation pass. Endpoints must resolve to a live record in the
	// existing store or the newly accepted set.
	var newRelations []*types.Relation
	seenRelationIDs := make(map[string]bool, len(doc.Relations))
	for _, in := range doc.Relations {
		if seenRelationIDs[in.ID] {
			summary.Relations.Duplicates++
			continue
		}
		seenRelationIDs[in.ID] = true

		rel, err := importRelation(in)
		if err != nil {
			logConflict("relation", in.ID)
			summary.Relations.Conflicts++
			continue
		}

		existing, err := s.relationByID(rel.ID)
		if err != nil {
			return nil, err
		}

		// A different relation occupying the same (type, from, to) key is
		// a duplicate edge; the same ID falls through to the structural
		// comparison below.
		if existing == nil {
			edgeTaken, err := edgeExists(s.db, rel.Type, rel.FromID, rel.ToID)
			if err != nil {
				return nil, err
			}
			if !edgeTaken {
				for _, pending := range newRelations {
					if pending.Type == rel.Type && pending.FromID == rel.FromID && pending.ToID == rel.ToID {
						edgeTaken = true
						break
					}
				}
			}
			if edgeTaken {
				summary.Relations.Duplicates++
				continue
			}
		}

		fromOK, err := s.endpointLive(rel.FromID, liveNew, importedIDs)
		if err != nil {
			return nil, err
		}
		toOK, err := s.endpointLive(rel.ToID, liveNew, importedIDs)
		if err != nil {
			return nil, err
		}
		if !fromOK || !toOK {
			summary.Relations.MissingEndpoints++
			continue
		}

		if existing != nil {
			if relationsIdentical(existing, rel) {
				summary.Relations.Skipped++
			} else {
				logConflict("relation", in.ID)
				summary.Relations.Conflicts++
			}
			continue
		}

		newRelations = append(newRelations, rel)
		summary.Relations.Imported++
	}

	if conflictsLogged > conflictLogCap {
		s.log.Warn().Int("more", conflictsLogged-conflictLogCap).Msg("further import conflicts suppressed")
	}

	err := s.withTx(func(tx *sql.Tx) error {
		for _, rec := range newRecords {
			if err := insertRecordTx(tx, rec); err != nil {
				return err
			}
		}
		for _, rel := range newRelations {
			if err := insertRelationTx(tx, rel); err != nil {
				return err
			}
		}
		return clearAllIndexFlagsTx(tx)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Purge()
	return summary, nil
}

// importRecord converts a wire record, validating type and timestamps.
func importRecord(in types.ExportRecord) (*types.Record, error) {
	if in.ID == "" || !types.ValidRecordType(in.Type) {
		return nil, types.ErrInvalidData
	}
	rec := &types.Record{ID: in.ID, Type: in.Type, Payload: in.Payload}
	var err error
	if rec.CreatedAt, err = parseTime(in.CreatedAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(in.UpdatedAt); err != nil {
		return nil, err
	}
	if in.DeletedAt != nil {
		t, err := parseTime(*in.DeletedAt)
		if err != nil {
			return nil, err
		}
		rec.DeletedAt = &t
		rec.Payload = nil
	}
	return rec, nil
}

// importRelation converts a wire relation, validating type and timestamp.
func importRelation(in types.ExportRelation) (*types.Relation, error) {
	if in.ID == "" || in.FromID == "" || in.ToID == "" || !types.ValidRelationType(in.Type) {
		return nil, types.ErrInvalidData
	}
	rel := &types.Relation{ID: in.ID, Type: in.Type, FromID: in.FromID, ToID: in.ToID}
	var err error
	if rel.CreatedAt, err = parseTime(in.CreatedAt); err != nil {
		return nil, err
	}
	return rel, nil
}

// recordsIdentical compares records structurally: same type, equal
// timestamps, same liveness, equivalent payload JSON.
func recordsIdentical(a, b *types.Record) bool {
	if a.Type != b.Type || !a.CreatedAt.Equal(b.CreatedAt) || !a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	if (a.DeletedAt == nil) != (b.DeletedAt == nil) {
		return false
	}
	if a.DeletedAt != nil && !a.DeletedAt.Equal(*b.DeletedAt) {
		return false
	}
	if (a.Payload == nil) != (b.Payload == nil) {
		return false
	}
	if a.Payload != nil && !types.PayloadEqual(a.Payload, b.Payload) {
		return false
	}
	return true
}

// relationsIdentical compares relations structurally.
func relationsIdentical(a, b *types.Relation) bool {
	return a.Type == b.Type && a.FromID == b.FromID && a.ToID == b.ToID &&
		a.CreatedAt.Equal(b.CreatedAt)
}

// relationByID fetches one relation; (nil, nil) when absent.
func (s *Store) relationByID(id string) (*types.Relation, error) {
	row := s.db.QueryRow("SELECT "+relationColumns+" FROM relations WHERE relation_id = ?", id)
	rel, err := hydrateRelation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting relation %s: %w", id, err)
	}
	return rel, nil
}

// endpointLive reports whether id resolves to a live record in the
// existing store or the newly accepted import set.
func (s *Store) endpointLive(id string, liveNew, importedIDs map[string]bool) (bool, error) {
	if liveNew[id] {
		return true, nil
	}
	if importedIDs[id] {
		// Imported in this pass but as a tombstone.
		return false, nil
	}
	rec, err := getRecordQ(s.db, id)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Live(), nil
}
