// Low-level record access: hydrate, fetch, insert, tombstone.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/strandlabs/loom/pkg/types"
)

// recordColumns is the SELECT column list matched by hydrateRecord.
const recordColumns = "record_id, record_type, created_at, updated_at, deleted_at, payload"

// rowScanner abstracts *sql.Row and *sql.Rows for hydration.
type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateRecord converts one records row into a *types.Record.
func hydrateRecord(row rowScanner) (*types.Record, error) {
	var (
		r         types.Record
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		payload   sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Type, &createdAt, &updatedAt, &deletedAt, &payload); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("record %s created_at: %w", r.ID, err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("record %s updated_at: %w", r.ID, err)
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, fmt.Errorf("record %s deleted_at: %w", r.ID, err)
		}
		r.DeletedAt = &t
	}
	if payload.Valid {
		r.Payload = json.RawMessage(payload.String)
	}
	return &r, nil
}

// getRecord retrieves a record by ID, consulting the read cache first.
// Returns (nil, nil) when the record does not exist.
func (s *Store) getRecord(id string) (*types.Record, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if rec, ok := s.cache.Get(id); ok {
		return rec, nil
	}

	rec, err := getRecordQ(s.db, id)
	if err != nil || rec == nil {
		return rec, err
	}
	s.cache.Add(id, rec)
	return rec, nil
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// getRecordQ retrieves a record through q without touching the cache.
// Returns (nil, nil) when the record does not exist.
func getRecordQ(q querier, id string) (*types.Record, error) {
	row := q.QueryRow("SELECT "+recordColumns+" FROM records WHERE record_id = ?", id)
	rec, err := hydrateRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	return rec, nil
}

// insertRecordTx inserts a new record row.
func insertRecordTx(tx *sql.Tx, rec *types.Record) error {
	var deletedAt any
	if rec.DeletedAt != nil {
		deletedAt = formatTime(*rec.DeletedAt)
	}
	var payload any
	if rec.Payload != nil {
		payload = string(rec.Payload)
	}
	_, err := tx.Exec(
		"INSERT INTO records (record_id, record_type, created_at, updated_at, deleted_at, payload) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Type, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), deletedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", rec.ID, err)
	}
	return nil
}

// updatePayloadTx replaces a record's payload and bumps updated_at.
func updatePayloadTx(tx *sql.Tx, id string, payload json.RawMessage, updatedAt time.Time) error {
	_, err := tx.Exec(
		"UPDATE records SET payload = ?, updated_at = ? WHERE record_id = ?",
		string(payload), formatTime(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	return nil
}

// tombstoneTx converts a live record into a tombstone: payload discarded,
// deletion timestamp set. One-way and terminal.
func tombstoneTx(tx *sql.Tx, id string, deletedAt time.Time) error {
	_, err := tx.Exec(
		"UPDATE records SET payload = NULL, deleted_at = ?, updated_at = ? WHERE record_id = ?",
		formatTime(deletedAt), formatTime(deletedAt), id,
	)
	if err != nil {
		return fmt.Errorf("tombstoning record %s: %w", id, err)
	}
	return nil
}

// liveCollection returns the record only if it is a live collection.
// Returns (nil, nil) otherwise.
func (s *Store) liveCollection(id string) (*types.Record, error) {
	rec, err := s.getRecord(id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Type != types.RecordTypeCollection || !rec.Live() {
		return nil, nil
	}
	return rec, nil
}

// liveBlock returns the record only if it is a live block.
// Returns (nil, nil) otherwise.
func (s *Store) liveBlock(id string) (*types.Record, error) {
	rec, err := s.getRecord(id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Type != types.RecordTypeBlock || !rec.Live() {
		return nil, nil
	}
	return rec, nil
}
