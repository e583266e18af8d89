// Export document format and import summary types.
package types

import "encoding/json"

// ExportVersion is the only export document version accepted on import.
const ExportVersion = 1

// ExportDocument is the portable full snapshot of the primary store.
type ExportDocument struct {
	Version    int              `json:"version"`
	ExportedAt string           `json:"exportedAt"`
	Records    []ExportRecord   `json:"records"`
	Relations  []ExportRelation `json:"relations"`
}

// ExportRecord mirrors Record with string timestamps for the wire format.
type ExportRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
	DeletedAt *string         `json:"deletedAt,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ExportRelation mirrors Relation for the wire format.
type ExportRelation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	FromID    string `json:"fromId"`
	ToID      string `json:"toId"`
	CreatedAt string `json:"createdAt"`
}

// ImportCounts aggregates per-record outcomes of an import pass.
type ImportCounts struct {
	Incoming   int `json:"incoming"`
	Imported   int `json:"imported"`
	Skipped    int `json:"skipped"`
	Conflicts  int `json:"conflicts"`
	Duplicates int `json:"duplicates"`
}

// RelationImportCounts extends ImportCounts with the dangling-endpoint
// count specific to relations.
type RelationImportCounts struct {
	ImportCounts
	MissingEndpoints int `json:"missingEndpoints"`
}

// ImportSummary reports the outcome of ImportAll. Import always returns a
// summary; structural issues are counted, never thrown.
type ImportSummary struct {
	Records   ImportCounts         `json:"records"`
	Relations RelationImportCounts `json:"relations"`
}
