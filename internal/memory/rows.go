package memory

import (
	"database/sql"
	"fmt"
	"math"
)

// selectColumns lists every memory_objects column in the fixed order
// scanRow expects. Kept as a single constant so Get/List/GetByPrefix never
// drift out of sync with scanRow's Scan targets.
const selectColumns = `SELECT
	id, content, object_type, scope_type, scope_path, status, superseded_by,
	confidence, confidence_tier, evidence_event_ids, evidence_excerpt,
	review_status, reviewed_at, created_at, updated_at, access_count,
	last_accessed, code_refs, last_verified_at, supersedes, structured,
	strength, last_reinforced_at, outcome_score
FROM memory_objects`

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(r rowScanner) (*MemoryObject, error) {
	var m MemoryObject
	var scopePath, supersededBy, evidenceJSON, codeRefsJSON, supersedesJSON, structuredJSON string
	var reviewedAt, lastAccessed, lastVerifiedAt, lastReinforcedAt sql.NullTime

	err := r.Scan(
		&m.ID, &m.Content, &m.ObjectType, &m.Scope.Type, &scopePath, &m.Status, &supersededBy,
		&m.Confidence, &m.ConfidenceTier, &evidenceJSON, &m.EvidenceExcerpt,
		&m.ReviewStatus, &reviewedAt, &m.CreatedAt, &m.UpdatedAt, &m.AccessCount,
		&lastAccessed, &codeRefsJSON, &lastVerifiedAt, &supersedesJSON, &structuredJSON,
		&m.Strength, &lastReinforcedAt, &m.OutcomeScore,
	)
	if err != nil {
		return nil, err
	}

	m.Scope.Path = scopePath
	m.SupersededBy = supersededBy

	m.EvidenceEventIDs = []string{}
	unmarshalTolerant(evidenceJSON, &m.EvidenceEventIDs)
	m.CodeRefs = []CodeReference{}
	unmarshalTolerant(codeRefsJSON, &m.CodeRefs)
	m.Supersedes = []string{}
	unmarshalTolerant(supersedesJSON, &m.Supersedes)
	if structuredJSON != "" {
		var s Structured
		unmarshalTolerant(structuredJSON, &s)
		if !s.Empty() {
			m.Structured = &s
		}
	}

	if reviewedAt.Valid {
		t := reviewedAt.Time
		m.ReviewedAt = &t
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessed = &t
	}
	if lastVerifiedAt.Valid {
		t := lastVerifiedAt.Time
		m.LastVerifiedAt = &t
	}
	if lastReinforcedAt.Valid {
		t := lastReinforcedAt.Time
		m.LastReinforcedAt = &t
	}

	return &m, nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertRow(tx execer, m MemoryObject) error {
	_, err := tx.Exec(`
		INSERT INTO memory_objects (
			id, content, object_type, scope_type, scope_path, status, superseded_by,
			confidence, confidence_tier, evidence_event_ids, evidence_excerpt,
			review_status, reviewed_at, created_at, updated_at, access_count,
			last_accessed, code_refs, last_verified_at, supersedes, structured,
			strength, last_reinforced_at, outcome_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Content, string(m.ObjectType), string(m.Scope.Type), m.Scope.Path, string(m.Status), nullableString(m.SupersededBy),
		string(m.Confidence), string(m.ConfidenceTier), marshalOrEmpty(orEmptySlice(m.EvidenceEventIDs)), m.EvidenceExcerpt,
		string(m.ReviewStatus), m.ReviewedAt, m.CreatedAt, m.UpdatedAt, m.AccessCount,
		m.LastAccessed, marshalOrEmpty(orEmptyRefs(m.CodeRefs)), m.LastVerifiedAt, marshalOrEmpty(orEmptySlice(m.Supersedes)), marshalStructured(m.Structured),
		m.Strength, m.LastReinforcedAt, m.OutcomeScore,
	)
	if err != nil {
		return fmt.Errorf("insert memory_objects row: %w", err)
	}
	return nil
}

func updateRow(tx execer, m MemoryObject) error {
	_, err := tx.Exec(`
		UPDATE memory_objects SET
			content = ?, object_type = ?, scope_type = ?, scope_path = ?, status = ?, superseded_by = ?,
			confidence = ?, confidence_tier = ?, evidence_event_ids = ?, evidence_excerpt = ?,
			review_status = ?, reviewed_at = ?, updated_at = ?, access_count = ?,
			last_accessed = ?, code_refs = ?, last_verified_at = ?, supersedes = ?, structured = ?,
			strength = ?, last_reinforced_at = ?, outcome_score = ?
		WHERE id = ?`,
		m.Content, string(m.ObjectType), string(m.Scope.Type), m.Scope.Path, string(m.Status), nullableString(m.SupersededBy),
		string(m.Confidence), string(m.ConfidenceTier), marshalOrEmpty(orEmptySlice(m.EvidenceEventIDs)), m.EvidenceExcerpt,
		string(m.ReviewStatus), m.ReviewedAt, m.UpdatedAt, m.AccessCount,
		m.LastAccessed, marshalOrEmpty(orEmptyRefs(m.CodeRefs)), m.LastVerifiedAt, marshalOrEmpty(orEmptySlice(m.Supersedes)), marshalStructured(m.Structured),
		m.Strength, m.LastReinforcedAt, m.OutcomeScore,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update memory_objects row: %w", err)
	}
	return nil
}

func marshalStructured(s *Structured) string {
	if s.Empty() {
		return ""
	}
	return marshalOrEmpty(s)
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyRefs(r []CodeReference) []CodeReference {
	if r == nil {
		return []CodeReference{}
	}
	return r
}

// pow2 computes 2^x; split out so tier/decay math reads as the formula it is.
func pow2(x float64) float64 { return math.Exp2(x) }

// float32bits exposes math.Float32bits under a package-local name matching
// the teacher's numeric-encoding helpers style.
func float32bits(f float32) uint32 { return math.Float32bits(f) }
