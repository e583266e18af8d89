// Store interface: backend-agnostic access to the Loom record store.
package types

import (
	"encoding/json"
	"errors"
)

// Store defines the operations of the primary record store, its derived
// indexes, and the export/import engine. All methods are atomic per call;
// multi-object writes commit in a single transaction. Index maintenance is
// best-effort and never fails a write.
type Store interface {
	// CreateCollection inserts a live collection record and sets it as the
	// active collection.
	CreateCollection(payload CollectionPayload) (*Record, error)

	// UpdateCollectionTitle sets the title of a live collection and bumps
	// its UpdatedAt. Returns (nil, nil) if id does not resolve to a live
	// collection.
	UpdateCollectionTitle(id, title string) (*Record, error)

	// ListCollections returns live collections newest-first, at most limit
	// entries (all when limit <= 0).
	ListCollections(limit int) ([]*Record, error)

	// DeleteCollection tombstones a collection, cascades to its exclusively
	// owned blocks, and hard-deletes relations touching the collection or
	// the tombstoned blocks. No-op if id is not a live collection.
	DeleteCollection(id string) error

	// AppendBlock creates a live block, a contains edge from the
	// collection, and one parent edge per supplied parent ID. When
	// opts.RecordID names an existing live block with an identical payload
	// the existing record is returned (idempotent replay); a divergent
	// payload or non-block record fails with ErrConflict.
	AppendBlock(collectionID string, payload BlockPayload, opts AppendOptions) (*Record, error)

	// CollectionBlocks returns the live blocks of a collection in stable
	// parent-before-child order.
	CollectionBlocks(collectionID string) ([]*Record, error)

	// EnsureCollectionContainsBlock adds a contains edge if both endpoints
	// are live and the edge does not already exist.
	EnsureCollectionContainsBlock(collectionID, blockID string) (LinkResult, error)

	// EnsureBlockSource adds a source edge from block to its originating
	// block under the same liveness rules.
	EnsureBlockSource(blockID, sourceBlockID string) (LinkResult, error)

	// DeleteSavedSystemPromptBlock tombstones a block only if it is a live
	// system-role block whose only relations are outgoing source edges.
	// Returns false without mutation if any precondition fails.
	DeleteSavedSystemPromptBlock(blockID string) (bool, error)

	// SavedSystemPrompts lists live system-role blocks that are not
	// contained in any collection and participate in no parent edges.
	SavedSystemPrompts() ([]*Record, error)

	// RelationTargets returns the target IDs of relations from fromID of
	// the given type, ordered by relation creation time.
	RelationTargets(fromID, relationType string) ([]string, error)

	// SearchBlocks runs a full-text query over indexed block content.
	SearchBlocks(query string, opts SearchOptions) ([]SearchHit, error)

	// ActiveCollectionID returns the active collection pointer, or "" when
	// unset.
	ActiveCollectionID() (string, error)

	// SetActiveCollectionID sets the active collection pointer.
	SetActiveCollectionID(id string) error

	// GetSetting reads a settings value into out. Reports whether the key
	// was present.
	GetSetting(key string, out any) (bool, error)

	// SetSetting writes a settings value as JSON.
	SetSetting(key string, value any) error

	// DeleteSetting removes a settings key. Missing keys are not an error.
	DeleteSetting(key string) error

	// ExportAll serializes the full primary store to a portable document.
	ExportAll() (*ExportDocument, error)

	// ImportAll merges an external document into the primary store and
	// reports per-entity outcome counts. Conflicts and dangling references
	// are counted, not fatal.
	ImportAll(doc *ExportDocument) (*ImportSummary, error)

	// Close flushes pending index work and releases resources. Idempotent.
	Close() error
}

// AppendOptions carries the optional arguments of AppendBlock.
type AppendOptions struct {
	// ParentIDs lists blocks that must render before the new block.
	ParentIDs []string

	// RecordID pins the new block's ID, enabling idempotent replay of a
	// previously applied append.
	RecordID string
}

// LinkResult is the outcome of an ensure-relation operation.
type LinkResult string

// Ensure-relation outcomes.
const (
	LinkResultLinked        LinkResult = "linked"
	LinkResultAlreadyLinked LinkResult = "already_linked"
	LinkResultMissing       LinkResult = "missing"
)

// Store operation errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("conflicting record content")
	ErrInvalidID     = errors.New("invalid record ID")
	ErrInvalidData   = errors.New("invalid record data")
	ErrTypeMismatch  = errors.New("record type mismatch")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidExport = errors.New("invalid export document")
)

// SettingValue is a convenience alias for opaque settings JSON.
type SettingValue = json.RawMessage

// Well-known settings keys consumed by the UI collaborators.
const (
	SettingActiveCollection = "activeCollectionId"
	SettingBaseURL          = "baseUrl"
	SettingModel            = "model"
	SettingAPIKeyCipher     = "apiKeyCipher"
	SettingInstallID        = "installId"
)
