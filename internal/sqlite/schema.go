// Package sqlite implements the SQLite backend for the Loom record store.
package sqlite

// Schema DDL. The records, relations, and kv tables form the primary store;
// index_meta, relation_index, collection_index, search_text, and
// search_terms are disposable derived projections, safe to drop and rebuild
// at any time without data loss.
const (
	createRecords = `CREATE TABLE IF NOT EXISTS records (
    record_id TEXT PRIMARY KEY,
    record_type TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    deleted_at TEXT,
    payload TEXT
);`

	createRecordsTypeIdx = `CREATE INDEX IF NOT EXISTS idx_records_type
    ON records(record_type, created_at);`

	createRelations = `CREATE TABLE IF NOT EXISTS relations (
    relation_id TEXT PRIMARY KEY,
    relation_type TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	// One edge per (type, from, to); derived relation IDs rely on this.
	createRelationsEdgeIdx = `CREATE UNIQUE INDEX IF NOT EXISTS idx_relations_edge
    ON relations(relation_type, from_id, to_id);`

	createRelationsToIdx = `CREATE INDEX IF NOT EXISTS idx_relations_to
    ON relations(to_id);`

	createKV = `CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	// A row with ready = 1 marks the named index as reflecting the primary
	// store; absence (or ready = 0) triggers a rebuild on the next read.
	createIndexMeta = `CREATE TABLE IF NOT EXISTS index_meta (
    index_name TEXT PRIMARY KEY,
    ready INTEGER NOT NULL,
    built_at TEXT
);`

	// Composite primary key gives the ordered range scan
	// "all to_id for (from_id, relation_type)".
	createRelationIndex = `CREATE TABLE IF NOT EXISTS relation_index (
    from_id TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    created_at TEXT NOT NULL,
    relation_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    PRIMARY KEY (from_id, relation_type, created_at, relation_id)
);`

	// Live collections keyed newest-last; readers scan DESC.
	createCollectionIndex = `CREATE TABLE IF NOT EXISTS collection_index (
    created_at TEXT NOT NULL,
    collection_id TEXT NOT NULL,
    title TEXT,
    PRIMARY KEY (created_at, collection_id)
);`

	// One search_text row per (collection, block) pair; a block contained
	// in N collections is indexed N times.
	createSearchText = `CREATE TABLE IF NOT EXISTS search_text (
    collection_id TEXT NOT NULL,
    block_id TEXT NOT NULL,
    role TEXT,
    content TEXT NOT NULL,
    normalized TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (collection_id, block_id)
);`

	createSearchTerms = `CREATE TABLE IF NOT EXISTS search_terms (
    term TEXT NOT NULL,
    collection_id TEXT NOT NULL,
    block_id TEXT NOT NULL,
    PRIMARY KEY (term, collection_id, block_id)
);`
)

// schemaStatements lists all DDL in execution order.
var schemaStatements = []string{
	createRecords,
	createRecordsTypeIdx,
	createRelations,
	createRelationsEdgeIdx,
	createRelationsToIdx,
	createKV,
	createIndexMeta,
	createRelationIndex,
	createCollectionIndex,
	createSearchText,
	createSearchTerms,
}

// Derived index names used in index_meta.
const (
	indexRelations   = "relations"
	indexCollections = "collections"
	indexSearch      = "search"
)

// allIndexes lists every derived index name.
var allIndexes = []string{indexRelations, indexCollections, indexSearch}
