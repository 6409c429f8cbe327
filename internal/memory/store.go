package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/ids"
	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/store"
)

// maxSupersessionDepth bounds DAG walks (spec §9: "bounded (max depth ~64)").
const maxSupersessionDepth = 64

// Store is the memory-object store (spec §4.D): the sole mutator of memory
// rows, responsible for CRUD, lifecycle transitions, and keeping the
// lexical/vector indexes consistent with row state.
type Store struct {
	db       *store.DB
	embedder embedding.Engine
	dims     int
}

// NewStore constructs a Store. embedder may be nil, in which case the
// vector index is never populated and search degrades to lexical-only.
func NewStore(db *store.DB, embedder embedding.Engine, dims int) *Store {
	if dims == 0 {
		dims = 384
	}
	return &Store{db: db, embedder: embedder, dims: dims}
}

// CreateInput is the caller-supplied subset of fields for a new memory.
type CreateInput struct {
	Content          string
	ObjectType       ObjectType
	Scope            Scope
	Confidence       Confidence
	EvidenceEventIDs []string
	EvidenceExcerpt  string
	ReviewStatus     ReviewStatus
	CodeRefs         []CodeReference
	Structured       *Structured
}

// Create inserts a new memory object, computing its initial confidenceTier
// (spec §4.D creation rule) and indexing it.
func (s *Store) Create(ctx context.Context, in CreateInput) (*MemoryObject, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Create")
	defer timer.Stop()

	if strings.TrimSpace(in.Content) == "" {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidContent, "content must not be empty")
	}
	if !ValidObjectType(in.ObjectType) {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidEnum, fmt.Sprintf("unknown object type %q", in.ObjectType))
	}
	if in.Confidence == "" {
		in.Confidence = ConfidenceMedium
	}
	if !ValidConfidence(in.Confidence) {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidEnum, fmt.Sprintf("unknown confidence %q", in.Confidence))
	}
	if in.ReviewStatus == "" {
		in.ReviewStatus = ReviewPending
	}
	if !ValidReviewStatus(in.ReviewStatus) {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidEnum, fmt.Sprintf("unknown review status %q", in.ReviewStatus))
	}
	if in.Scope.Type == "" {
		in.Scope.Type = ScopeGlobal
	}

	now := time.Now().UTC()
	m := MemoryObject{
		ID:               ids.New(),
		Content:          in.Content,
		ObjectType:       in.ObjectType,
		Scope:            in.Scope,
		Status:           StatusActive,
		Confidence:       in.Confidence,
		EvidenceEventIDs: in.EvidenceEventIDs,
		EvidenceExcerpt:  in.EvidenceExcerpt,
		ReviewStatus:     in.ReviewStatus,
		CreatedAt:        now,
		UpdatedAt:        now,
		CodeRefs:         in.CodeRefs,
		Supersedes:       []string{},
		Structured:       in.Structured,
		Strength:         0.5,
		OutcomeScore:     0.5,
	}
	m.ConfidenceTier = DeriveTier(m, now)

	if err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		return insertRow(tx, m)
	}); err != nil {
		return nil, fmt.Errorf("memory: create failed: %w", err)
	}

	s.reembed(ctx, m.ID, m.Content)
	return &m, nil
}

// Get fetches a memory by its exact id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*MemoryObject, error) {
	row := s.db.Conn().QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	m, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get failed: %w", err)
	}
	return m, nil
}

// GetByPrefix resolves id (a full id or a >=8-char unique prefix) to a
// memory (spec §4.D, §8 Scenario 6).
func (s *Store) GetByPrefix(ctx context.Context, prefix string) (*MemoryObject, error) {
	if len(prefix) >= 32 {
		return s.Get(ctx, prefix)
	}
	if len(prefix) < ids.MinPrefixLen {
		return s.Get(ctx, prefix)
	}
	rows, err := s.db.Conn().QueryContext(ctx, "SELECT id FROM memory_objects WHERE id LIKE ? || '%'", prefix)
	if err != nil {
		return nil, fmt.Errorf("memory: prefix lookup failed: %w", err)
	}
	defer rows.Close()
	var matches []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		matches = append(matches, id)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return s.Get(ctx, matches[0])
	default:
		return nil, alexandriaerr.New(alexandriaerr.KindNotFound, fmt.Sprintf("ambiguous prefix %q matches %d memories", prefix, len(matches)))
	}
}

// ListFilter narrows List results.
type ListFilter struct {
	Status       []Status
	ObjectType   ObjectType
	ReviewStatus ReviewStatus
	Limit        int
}

// List returns memories matching filter, newest-created first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]MemoryObject, error) {
	query := selectColumns + " WHERE 1=1"
	var args []interface{}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.ObjectType != "" {
		query += " AND object_type = ?"
		args = append(args, string(filter.ObjectType))
	}
	if filter.ReviewStatus != "" {
		query += " AND review_status = ?"
		args = append(args, string(filter.ReviewStatus))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("memory: list failed: %w", err)
	}
	defer rows.Close()

	var out []MemoryObject
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			continue
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateContent edits a memory's content, re-deriving its confidenceTier
// and re-indexing. Returns (nil, nil) if id does not exist (spec §4.D:
// "Update on non-existent id returns null; callers decide whether to raise").
func (s *Store) UpdateContent(ctx context.Context, id, content string) (*MemoryObject, error) {
	if strings.TrimSpace(content) == "" {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidContent, "content must not be empty")
	}
	m, err := s.mutate(ctx, id, func(m *MemoryObject) error {
		m.Content = content
		return nil
	})
	if err != nil || m == nil {
		return m, err
	}
	s.reembed(ctx, m.ID, m.Content)
	return m, nil
}

// UpdateContentAndEvidence folds new evidence and a (possibly raised)
// confidence into an existing memory without touching its content, used by
// the auto-merger when a fresh event corroborates an already-known fact
// (spec §4.E "merge").
func (s *Store) UpdateContentAndEvidence(ctx context.Context, id string, evidence []string, confidence Confidence) (*MemoryObject, error) {
	if !ValidConfidence(confidence) {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidEnum, fmt.Sprintf("unknown confidence %q", confidence))
	}
	return s.mutate(ctx, id, func(m *MemoryObject) error {
		m.EvidenceEventIDs = dedupStrings(evidence)
		m.Confidence = confidence
		return nil
	})
}

// Approve marks a memory's review status approved.
func (s *Store) Approve(ctx context.Context, id string) (*MemoryObject, error) {
	return s.mutate(ctx, id, func(m *MemoryObject) error {
		m.ReviewStatus = ReviewApproved
		now := time.Now().UTC()
		m.ReviewedAt = &now
		return nil
	})
}

// Reject marks a memory's review status rejected.
func (s *Store) Reject(ctx context.Context, id string) (*MemoryObject, error) {
	return s.mutate(ctx, id, func(m *MemoryObject) error {
		m.ReviewStatus = ReviewRejected
		now := time.Now().UTC()
		m.ReviewedAt = &now
		return nil
	})
}

// MarkStale transitions a memory to status=stale. reason is accepted for
// API symmetry with the spec but is not persisted as a separate column;
// callers that need an audit trail should record it via the event log.
func (s *Store) MarkStale(ctx context.Context, id, reason string) (*MemoryObject, error) {
	logging.Get(logging.CategoryMemory).Debug("MarkStale(%s): %s", id, reason)
	return s.mutate(ctx, id, func(m *MemoryObject) error {
		m.Status = StatusStale
		return nil
	})
}

// Verify stamps every code ref's verifiedAtCommit to atCommit and updates
// lastVerifiedAt (spec §4.D).
func (s *Store) Verify(ctx context.Context, id, atCommit string) (*MemoryObject, error) {
	return s.mutate(ctx, id, func(m *MemoryObject) error {
		now := time.Now().UTC()
		for i := range m.CodeRefs {
			m.CodeRefs[i].VerifiedAtCommit = atCommit
		}
		m.LastVerifiedAt = &now
		return nil
	})
}

// Retire transitions a memory to status=retired. Idempotent.
func (s *Store) Retire(ctx context.Context, id string) (*MemoryObject, error) {
	return s.mutate(ctx, id, func(m *MemoryObject) error {
		m.Status = StatusRetired
		return nil
	})
}

// Supersede sets old.status=superseded, old.supersededBy=newID, and adds
// old's id to new.supersedes. Refuses to create a supersession cycle
// (spec §4.D, §8 invariant 2).
func (s *Store) Supersede(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return alexandriaerr.New(alexandriaerr.KindCycleDetected, "a memory cannot supersede itself")
	}

	newObj, err := s.Get(ctx, newID)
	if err != nil {
		return err
	}
	if newObj == nil {
		return alexandriaerr.New(alexandriaerr.KindNotFound, fmt.Sprintf("supersede target %q not found", newID))
	}

	if cycle, err := s.wouldCycle(ctx, oldID, newID); err != nil {
		return err
	} else if cycle {
		return alexandriaerr.New(alexandriaerr.KindCycleDetected, fmt.Sprintf("supersede(%s, %s) would create a cycle", oldID, newID))
	}

	if _, err := s.mutate(ctx, oldID, func(m *MemoryObject) error {
		m.Status = StatusSuperseded
		m.SupersededBy = newID
		return nil
	}); err != nil {
		return err
	}

	_, err = s.mutate(ctx, newID, func(m *MemoryObject) error {
		for _, existing := range m.Supersedes {
			if existing == oldID {
				return nil
			}
		}
		m.Supersedes = append(m.Supersedes, oldID)
		return nil
	})
	return err
}

// wouldCycle reports whether setting oldID.supersededBy=newID would create
// a loop, by walking newID's existing supersededBy chain looking for oldID.
func (s *Store) wouldCycle(ctx context.Context, oldID, newID string) (bool, error) {
	current := newID
	seen := map[string]bool{}
	for depth := 0; depth < maxSupersessionDepth; depth++ {
		if current == oldID {
			return true, nil
		}
		if seen[current] {
			return false, nil // pre-existing cycle elsewhere; not this call's fault
		}
		seen[current] = true

		obj, err := s.Get(ctx, current)
		if err != nil {
			return false, err
		}
		if obj == nil || obj.SupersededBy == "" {
			return false, nil
		}
		current = obj.SupersededBy
	}
	return false, nil
}

// ResolveActive follows supersededBy pointers from id to the first
// non-superseded (active) target, bounded and cycle-aware (spec §5
// "Ordering guarantees": "must stop at the first active target and must
// never loop").
func (s *Store) ResolveActive(ctx context.Context, id string) (*MemoryObject, error) {
	current := id
	seen := map[string]bool{}
	for depth := 0; depth < maxSupersessionDepth; depth++ {
		if seen[current] {
			return nil, alexandriaerr.New(alexandriaerr.KindCycleDetected, "supersession chain loops")
		}
		seen[current] = true

		obj, err := s.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, nil
		}
		if obj.Status != StatusSuperseded || obj.SupersededBy == "" {
			return obj, nil
		}
		current = obj.SupersededBy
	}
	return nil, alexandriaerr.New(alexandriaerr.KindCycleDetected, "supersession chain exceeded max depth")
}

// accessReinforceKick is the bounded additive strength bump from recordAccess.
const accessReinforceKick = 0.05

// RecordAccess increments accessCount, stamps lastAccessed, and reinforces
// strength (spec §4.D "Access accounting").
func (s *Store) RecordAccess(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := s.db.Conn().ExecContext(ctx, `
		UPDATE memory_objects
		SET access_count = access_count + 1,
		    last_accessed = ?,
		    strength = MIN(1.0, strength + ?),
		    last_reinforced_at = ?
		WHERE id = ?`, now, accessReinforceKick, now, id)
	if err != nil {
		return fmt.Errorf("memory: record access failed: %w", err)
	}
	return nil
}

// DecayStrengths multiplies every active memory's strength by an
// exponential decay factor based on elapsed time since lastReinforcedAt
// (spec §4.D: "A separate decay pass ... out of §4 hot paths"). Returns the
// number of rows updated. Never called implicitly by a request path.
func (s *Store) DecayStrengths(ctx context.Context, halfLife time.Duration) (int, error) {
	if halfLife <= 0 {
		return 0, fmt.Errorf("memory: halfLife must be positive")
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, strength, last_reinforced_at FROM memory_objects
		WHERE status = 'active' AND last_reinforced_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("memory: decay query failed: %w", err)
	}
	type decayRow struct {
		id       string
		strength float64
		last     time.Time
	}
	var batch []decayRow
	for rows.Next() {
		var r decayRow
		var last sql.NullTime
		if err := rows.Scan(&r.id, &r.strength, &last); err != nil {
			continue
		}
		if !last.Valid {
			continue
		}
		r.last = last.Time
		batch = append(batch, r)
	}
	rows.Close()

	now := time.Now().UTC()
	updated := 0
	for _, r := range batch {
		elapsed := now.Sub(r.last)
		factor := halfLifeDecay(elapsed, halfLife)
		newStrength := r.strength * factor
		if _, err := s.db.Conn().ExecContext(ctx, "UPDATE memory_objects SET strength = ? WHERE id = ?", newStrength, r.id); err != nil {
			continue
		}
		updated++
	}
	return updated, nil
}

// RecordOutcome appends an outcome and folds it into the memory's rolling
// outcomeScore (spec §3 "mutates the parent memory's outcomeScore as a
// smoothed average").
func (s *Store) RecordOutcome(ctx context.Context, o Outcome) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}

	sample := outcomeSample(o.Outcome)

	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO outcomes (id, memory_id, session_id, timestamp, outcome, context) VALUES (?, ?, ?, ?, ?, ?)`,
			o.ID, o.MemoryID, nullableString(o.SessionID), o.Timestamp, string(o.Outcome), o.Context); err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
		var current float64
		if err := tx.QueryRow("SELECT outcome_score FROM memory_objects WHERE id = ?", o.MemoryID).Scan(&current); err != nil {
			return fmt.Errorf("lookup outcome score: %w", err)
		}
		const smoothing = 0.2
		updated := current + smoothing*(sample-current)
		if _, err := tx.Exec("UPDATE memory_objects SET outcome_score = ? WHERE id = ?", updated, o.MemoryID); err != nil {
			return fmt.Errorf("update outcome score: %w", err)
		}
		return nil
	})
}

func outcomeSample(k OutcomeKind) float64 {
	switch k {
	case OutcomeHelpful:
		return 1.0
	case OutcomeUnhelpful:
		return 0.0
	default:
		return 0.5
	}
}

func halfLifeDecay(elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 {
		return 1.0
	}
	ratio := float64(elapsed) / float64(halfLife)
	return pow2(-ratio)
}

// mutate loads id, applies fn, recomputes confidenceTier, and persists the
// row in one transaction, satisfying spec §8 invariant 1 ("confidenceTier
// == deriveTier(m) immediately after any successful mutation of m").
func (s *Store) mutate(ctx context.Context, id string, fn func(m *MemoryObject) error) (*MemoryObject, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	if err := fn(existing); err != nil {
		return nil, err
	}
	existing.UpdatedAt = time.Now().UTC()
	existing.ConfidenceTier = DeriveTier(*existing, existing.UpdatedAt)

	if err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		return updateRow(tx, *existing)
	}); err != nil {
		return nil, fmt.Errorf("memory: mutate failed: %w", err)
	}
	return existing, nil
}

// reembed computes and stores the dense embedding for (id, content). It is
// a no-op when no embedding engine is configured (degraded lexical-only
// mode, spec §4.A/§4.D).
func (s *Store) reembed(ctx context.Context, id, content string) {
	if s.embedder == nil {
		return
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("reembed(%s) failed, leaving stale embedding in place: %v", id, err)
		return
	}
	if err := s.storeEmbedding(ctx, id, vec); err != nil {
		logging.Get(logging.CategoryMemory).Warn("reembed(%s) failed to persist: %v", id, err)
	}
}

func (s *Store) storeEmbedding(ctx context.Context, id string, vec []float32) error {
	blob := encodeFloat32(vec)
	if _, err := s.db.Conn().ExecContext(ctx,
		"INSERT INTO memory_embeddings (memory_id, vector, dims) VALUES (?, ?, ?) ON CONFLICT(memory_id) DO UPDATE SET vector = excluded.vector, dims = excluded.dims",
		id, blob, len(vec)); err != nil {
		return fmt.Errorf("store fallback embedding: %w", err)
	}
	if s.db.HasVectorExtension() {
		if _, err := s.db.Conn().ExecContext(ctx, "DELETE FROM memory_vec WHERE memory_id = ?", id); err != nil {
			logging.Get(logging.CategoryMemory).Warn("failed clearing memory_vec row for %s: %v", id, err)
		}
		if _, err := s.db.Conn().ExecContext(ctx, "INSERT INTO memory_vec (memory_id, embedding) VALUES (?, ?)", id, blob); err != nil {
			logging.Get(logging.CategoryMemory).Warn("failed inserting memory_vec row for %s: %v", id, err)
		}
	}
	return nil
}

// batchReembedWorkers bounds how many re-embed calls BatchReembed runs
// concurrently, keeping a bulk import from opening one outbound embedding
// request per row (spec §9 Open Question: "implementers should batch or
// defer but preserve the post-condition that indexes match row state
// before the next read").
const batchReembedWorkers = 4

// BatchReembed recomputes embeddings for the given ids across a bounded
// pool of workers and waits for every one to finish before returning, so a
// caller's next read already sees consistent indexes. Used by import and
// maintenance paths rather than the hot Create/Update path, which
// re-embeds synchronously because it only ever touches one row.
func (s *Store) BatchReembed(ctx context.Context, ids []string) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}

	var updated int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchReembedWorkers)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			m, err := s.Get(gctx, id)
			if err != nil || m == nil {
				return nil
			}
			s.reembed(gctx, id, m.Content)
			atomic.AddInt64(&updated, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(updated), fmt.Errorf("memory: batch reembed failed: %w", err)
	}
	return int(updated), nil
}

func encodeFloat32(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], float32bits(v))
	}
	return buf
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
