// Search result types for the full-text index.
package types

import "time"

// DefaultSearchLimit caps search results when SearchOptions.Limit is unset.
const DefaultSearchLimit = 40

// SearchOptions narrows a SearchBlocks query.
type SearchOptions struct {
	// CollectionID scopes the search to one collection when non-empty.
	CollectionID string

	// Limit caps the number of hits; DefaultSearchLimit when <= 0.
	Limit int
}

// SearchHit is one scored match of a full-text query. A block contained in
// several collections can produce one hit per collection.
type SearchHit struct {
	CollectionID string
	BlockID      string
	Role         string
	Snippet      string
	CreatedAt    time.Time
	Score        float64
}
