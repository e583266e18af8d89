// Full-text search: tokenization, the text/term sub-indexes, smart-case
// query processing, scoring, and snippets.
package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/strandlabs/loom/pkg/types"
)

// Query processing limits.
const (
	maxQueryTerms = 8
	minTermRunes  = 2
)

// Scoring weights. Recency decays logarithmically and floors at zero.
const (
	termMatchWeight   = 24.0
	phraseMatchWeight = 30.0
	recencyBase       = 8.0
	recencyDecay      = 4.0
)

// Snippet geometry: up to 220 characters with 80 characters of leading
// context before the first matched term.
const (
	snippetLength = 220
	snippetLead   = 80
)

// normalizer strips diacritics: NFD decomposition, drop combining marks,
// recompose.
var normalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText lowercases s and strips diacritics for matching.
func normalizeText(s string) string {
	stripped, _, err := transform.String(normalizer, s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(stripped)
}

// tokenize splits s on runs of non-alphanumeric, non-underscore runes and
// dedupes while preserving first-seen order.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	seen := make(map[string]bool, len(fields))
	tokens := fields[:0]
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// queryTerms normalizes and tokenizes a query: terms shorter than two
// runes are dropped and at most maxQueryTerms survive.
func queryTerms(s string) []string {
	var terms []string
	for _, tok := range tokenize(s) {
		if utf8.RuneCountInString(tok) < minTermRunes {
			continue
		}
		terms = append(terms, tok)
		if len(terms) == maxQueryTerms {
			break
		}
	}
	return terms
}

// indexBlockContentTx writes the text entry and term postings for one
// (collection, block) pair, replacing any previous entries for the pair.
func indexBlockContentTx(tx *sql.Tx, collectionID, blockID, role, content, createdAt string) error {
	normalized := normalizeText(content)

	_, err := tx.Exec(
		"INSERT OR REPLACE INTO search_text (collection_id, block_id, role, content, normalized, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		collectionID, blockID, role, content, normalized, createdAt,
	)
	if err != nil {
		return fmt.Errorf("writing search text %s/%s: %w", collectionID, blockID, err)
	}

	if _, err := tx.Exec(
		"DELETE FROM search_terms WHERE collection_id = ? AND block_id = ?",
		collectionID, blockID,
	); err != nil {
		return fmt.Errorf("clearing search terms %s/%s: %w", collectionID, blockID, err)
	}
	for _, term := range tokenize(normalized) {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO search_terms (term, collection_id, block_id) VALUES (?, ?, ?)",
			term, collectionID, blockID,
		); err != nil {
			return fmt.Errorf("writing search term %q: %w", term, err)
		}
	}
	return nil
}

// rebuildSearchIndexTx recomputes both search sub-indexes from the primary
// store: every live block under every live collection that contains it.
func rebuildSearchIndexTx(tx *sql.Tx) error {
	for _, stmt := range []string{"DELETE FROM search_text", "DELETE FROM search_terms"} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clearing search index: %w", err)
		}
	}

	rows, err := tx.Query(
		`SELECT r.from_id, b.record_id, b.record_type, b.created_at, b.updated_at, b.deleted_at, b.payload
         FROM relations r
         JOIN records c ON c.record_id = r.from_id
         JOIN records b ON b.record_id = r.to_id
         WHERE r.relation_type = ?
           AND c.record_type = ? AND c.deleted_at IS NULL
           AND b.record_type = ? AND b.deleted_at IS NULL`,
		types.RelationContains, types.RecordTypeCollection, types.RecordTypeBlock,
	)
	if err != nil {
		return fmt.Errorf("scanning contained blocks: %w", err)
	}

	type pair struct {
		collectionID string
		block        *types.Record
	}
	var pairs []pair
	for rows.Next() {
		var collectionID string
		var (
			rec       types.Record
			createdAt string
			updatedAt string
			deletedAt sql.NullString
			payload   sql.NullString
		)
		if err := rows.Scan(&collectionID, &rec.ID, &rec.Type, &createdAt, &updatedAt, &deletedAt, &payload); err != nil {
			rows.Close()
			return fmt.Errorf("scanning search rebuild row: %w", err)
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return err
		}
		if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
			rows.Close()
			return err
		}
		if payload.Valid {
			rec.Payload = []byte(payload.String)
		}
		pairs = append(pairs, pair{collectionID: collectionID, block: &rec})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating search rebuild rows: %w", err)
	}
	rows.Close()

	for _, p := range pairs {
		payload, err := p.block.BlockPayload()
		if err != nil {
			// Undecodable payloads are not indexable; skip rather than
			// fail the whole rebuild.
			continue
		}
		if err := indexBlockContentTx(tx, p.collectionID, p.block.ID, payload.Role, payload.Content, formatTime(p.block.CreatedAt)); err != nil {
			return err
		}
	}
	return nil
}

// SearchBlocks runs a full-text query: all normalized terms must match
// (logical AND), smart case adds literal substring filtering, and results
// come back in a total deterministic order.
func (s *Store) SearchBlocks(query string, opts types.SearchOptions) ([]types.SearchHit, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	terms := queryTerms(normalizeText(query))
	if len(terms) == 0 {
		return nil, nil
	}

	// Smart case: an uppercase letter in the raw query demands literal
	// containment of every case-sensitive term in the raw content.
	var caseTerms []string
	if strings.IndexFunc(query, unicode.IsUpper) >= 0 {
		caseTerms = queryTerms(query)
	}

	if err := s.ensureIndexReady(indexSearch); err != nil {
		return nil, err
	}

	candidates, err := s.candidatePairs(terms, opts.CollectionID)
	if err != nil {
		return nil, err
	}

	phrase := strings.TrimSpace(normalizeText(query))
	now := s.now().UTC()

	var hits []types.SearchHit
	for _, cand := range candidates {
		entry, err := s.searchEntry(cand.collectionID, cand.blockID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}

		if !containsAll(entry.content, caseTerms) {
			continue
		}

		score := float64(len(terms)) * termMatchWeight
		if phrase != "" && strings.Contains(entry.normalized, phrase) {
			score += phraseMatchWeight
		}
		score += recencyBoost(now.Sub(entry.createdAt).Hours() / 24)

		hits = append(hits, types.SearchHit{
			CollectionID: cand.collectionID,
			BlockID:      cand.blockID,
			Role:         entry.role,
			Snippet:      buildSnippet(entry.content, terms),
			CreatedAt:    entry.createdAt,
			Score:        score,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.CollectionID != b.CollectionID {
			return a.CollectionID < b.CollectionID
		}
		return a.BlockID < b.BlockID
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = types.DefaultSearchLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// candidate is one (collection, block) pair matching every query term.
type candidate struct {
	collectionID string
	blockID      string
}

// candidatePairs finds pairs whose term postings cover all terms.
func (s *Store) candidatePairs(terms []string, collectionID string) ([]candidate, error) {
	placeholders := strings.Repeat("?, ", len(terms)-1) + "?"
	query := "SELECT collection_id, block_id FROM search_terms WHERE term IN (" + placeholders + ")"
	args := make([]any, 0, len(terms)+1)
	for _, t := range terms {
		args = append(args, t)
	}
	if collectionID != "" {
		query += " AND collection_id = ?"
		args = append(args, collectionID)
	}
	query += " GROUP BY collection_id, block_id HAVING COUNT(DISTINCT term) = " + fmt.Sprintf("%d", len(terms))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying term index: %w", err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.collectionID, &c.blockID); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating candidates: %w", err)
	}
	return cands, nil
}

// textEntry is one hydrated search_text row.
type textEntry struct {
	role       string
	content    string
	normalized string
	createdAt  time.Time
}

// searchEntry fetches the text entry for a pair; (nil, nil) when missing.
func (s *Store) searchEntry(collectionID, blockID string) (*textEntry, error) {
	var (
		entry     textEntry
		role      sql.NullString
		createdAt string
	)
	err := s.db.QueryRow(
		"SELECT role, content, normalized, created_at FROM search_text WHERE collection_id = ? AND block_id = ?",
		collectionID, blockID,
	).Scan(&role, &entry.content, &entry.normalized, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading search text %s/%s: %w", collectionID, blockID, err)
	}
	entry.role = role.String
	if entry.createdAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

// recencyBoost rewards newer content: 8 - 4*log10(days+1), floored at 0.
func recencyBoost(days float64) float64 {
	if days < 0 {
		days = 0
	}
	boost := recencyBase - recencyDecay*math.Log10(days+1)
	if boost < 0 {
		return 0
	}
	return boost
}

// containsAll reports literal substring containment of every term.
func containsAll(content string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(content, t) {
			return false
		}
	}
	return true
}

// indexFold finds the byte offset of the first case-insensitive occurrence
// of term in content. Returns -1 when offsets cannot be mapped reliably
// (lowercasing changed the byte length) or the term is absent.
func indexFold(content, term string) int {
	lc := strings.ToLower(content)
	i := strings.Index(lc, term)
	if i < 0 || len(lc) != len(content) {
		return -1
	}
	return i
}

// buildSnippet centers a window on the earliest term occurrence: up to
// snippetLength characters with snippetLead characters of leading context,
// whitespace collapsed, ellipses marking truncation. Falls back to the
// start of the content when no term is found literally.
func buildSnippet(content string, terms []string) string {
	pos := -1
	for _, t := range terms {
		if i := indexFold(content, t); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}

	start := pos - snippetLead
	if start < 0 {
		start = 0
	}
	end := start + snippetLength
	if end > len(content) {
		end = len(content)
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	snippet := strings.Join(strings.Fields(content[start:end]), " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}
