// Settings table: opaque key to JSON-value pairs, plus the active
// collection pointer.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/strandlabs/loom/pkg/types"
)

// GetSetting reads the JSON value stored under key into out. Reports
// whether the key was present.
func (s *Store) GetSetting(key string, out any) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(value), out); err != nil {
			return false, fmt.Errorf("decoding setting %s: %w", key, err)
		}
	}
	return true, nil
}

// SetSetting writes value as JSON under key, replacing any previous value.
func (s *Store) SetSetting(key string, value any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTx(func(tx *sql.Tx) error {
		return setSettingTx(tx, key, value)
	})
}

// DeleteSetting removes key. Missing keys are not an error.
func (s *Store) DeleteSetting(key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

// setSettingTx writes a settings value inside the caller's transaction.
func setSettingTx(tx *sql.Tx, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	_, err = tx.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// ActiveCollectionID returns the active collection pointer, or "" when
// unset.
func (s *Store) ActiveCollectionID() (string, error) {
	var id string
	ok, err := s.GetSetting(types.SettingActiveCollection, &id)
	if err != nil || !ok {
		return "", err
	}
	return id, nil
}

// SetActiveCollectionID sets the active collection pointer.
func (s *Store) SetActiveCollectionID(id string) error {
	return s.SetSetting(types.SettingActiveCollection, id)
}
