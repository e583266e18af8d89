// Record entity: a typed, timestamped object that is either live (payload
// present) or a tombstone (payload discarded, deletion timestamp set).
package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// Record type constants.
const (
	RecordTypeCollection = "collection"
	RecordTypeBlock      = "block"
)

// validRecordTypes is the set of recognized record type values.
var validRecordTypes = map[string]bool{
	RecordTypeCollection: true,
	RecordTypeBlock:      true,
}

// ValidRecordType reports whether t is a recognized record type.
func ValidRecordType(t string) bool {
	return validRecordTypes[t]
}

// Record represents a collection or block entity.
//
// Exactly one of the following holds at any time: Payload is non-nil and
// DeletedAt is nil (live), or Payload is nil and DeletedAt is set
// (tombstone). Tombstones are never physically removed; they preserve
// referential history for relations.
type Record struct {
	// ID is a prefixed 21-symbol random identifier, generated on creation.
	ID string

	// Type is the record type (collection or block).
	Type string

	// CreatedAt is the timestamp of creation.
	CreatedAt time.Time

	// UpdatedAt is the timestamp of last modification.
	UpdatedAt time.Time

	// DeletedAt marks the record as a tombstone when non-nil.
	DeletedAt *time.Time

	// Payload is the JSON-encoded entity payload; nil for tombstones.
	Payload json.RawMessage
}

// Live reports whether the record carries a payload and has not been
// tombstoned.
func (r *Record) Live() bool {
	return r.DeletedAt == nil && r.Payload != nil
}

// CollectionPayload is the payload of a collection record.
type CollectionPayload struct {
	Title          string `json:"title,omitempty"`
	LocalTimestamp string `json:"localTimestamp"`
}

// BlockPayload is the payload of a block record. Request and Response hold
// opaque chat-exchange JSON captured by the completion client.
type BlockPayload struct {
	Role           string          `json:"role,omitempty"`
	Content        string          `json:"content"`
	LocalTimestamp string          `json:"localTimestamp"`
	Request        json.RawMessage `json:"request,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
}

// CollectionPayload decodes the record payload as a collection payload.
// Returns ErrNotFound for tombstones and ErrTypeMismatch for non-collection
// records.
func (r *Record) CollectionPayload() (*CollectionPayload, error) {
	if r.Type != RecordTypeCollection {
		return nil, ErrTypeMismatch
	}
	if !r.Live() {
		return nil, ErrNotFound
	}
	var p CollectionPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// BlockPayload decodes the record payload as a block payload.
// Returns ErrNotFound for tombstones and ErrTypeMismatch for non-block
// records.
func (r *Record) BlockPayload() (*BlockPayload, error) {
	if r.Type != RecordTypeBlock {
		return nil, ErrTypeMismatch
	}
	if !r.Live() {
		return nil, ErrNotFound
	}
	var p BlockPayload
	if err := json.Unmarshal(r.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PayloadEqual reports byte equality of the two JSON payloads after
// canonical re-marshaling. Used by append replay detection.
func PayloadEqual(a, b json.RawMessage) bool {
	ca, err := canonicalJSON(a)
	if err != nil {
		return bytes.Equal(a, b)
	}
	cb, err := canonicalJSON(b)
	if err != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca, cb)
}

// canonicalJSON round-trips raw JSON through encoding/json, which sorts
// object keys and strips insignificant whitespace.
func canonicalJSON(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
