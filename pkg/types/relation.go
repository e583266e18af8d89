// Relation entity: directed typed edges between record IDs.
package types

import "time"

// Relation type constants.
const (
	// RelationContains links a collection to a block it owns. A block may
	// be contained by more than one collection.
	RelationContains = "contains"

	// RelationParent links a block to a rendering-order predecessor within
	// the same collection. Supports branching topologies.
	RelationParent = "parent"

	// RelationSource links a derived block to its originating block.
	RelationSource = "source"
)

// validRelationTypes is the set of recognized relation type values.
var validRelationTypes = map[string]bool{
	RelationContains: true,
	RelationParent:   true,
	RelationSource:   true,
}

// ValidRelationType reports whether t is a recognized relation type.
func ValidRelationType(t string) bool {
	return validRelationTypes[t]
}

// Relation represents a directed edge in the record graph. Relations are
// hard-deleted (never tombstoned) when an endpoint or owning collection is
// deleted.
type Relation struct {
	// ID is deterministic for contains/parent edges (derived from type,
	// from, to) so re-asserting an edge is idempotent; source edge IDs
	// are random.
	ID string

	// Type is the relation type (contains, parent, source).
	Type string

	// FromID is the source record ID.
	FromID string

	// ToID is the target record ID.
	ToID string

	// CreatedAt is the timestamp of creation.
	CreatedAt time.Time
}
