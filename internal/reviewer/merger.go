package reviewer

import (
	"context"
	"fmt"
	"strings"

	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/extractor"
	"github.com/franalgaba/alexandria/internal/memory"
)

// similarityGate is the cosine-similarity threshold above which two
// memories are considered "about the same thing" for merge/supersede
// purposes (spec §4.E: "cosine gate >= 0.8").
const similarityGate = 0.8

// Merger finds near-duplicate existing memories for a candidate and merges
// evidence into the strongest one instead of creating a new row (spec
// §4.E "Merger").
type Merger struct {
	store    *memory.Store
	embedder embedding.Engine
}

// NewMerger constructs a Merger. embedder may be nil; lacking embeddings,
// findSimilar degrades to exact-content matching only.
func NewMerger(store *memory.Store, embedder embedding.Engine) *Merger {
	return &Merger{store: store, embedder: embedder}
}

// relatedTypes reports whether an existing memory's type is worth comparing
// a candidate against at all: either the same type (possible merge/decision
// supersession), or one of the fixed cross-type pairs the superseder acts on
// (spec §4.E: "known_fix supersedes failed_attempt on the same subject").
func relatedTypes(candidate, existing memory.ObjectType) bool {
	if candidate == existing {
		return true
	}
	return candidate == memory.TypeKnownFix && existing == memory.TypeFailedAttempt
}

// findSimilar returns existing memories whose content is judged similar
// enough to candidate to be the same underlying fact (spec §4.E).
func (m *Merger) findSimilar(ctx context.Context, candidate extractor.Candidate, pool []memory.MemoryObject) ([]memory.MemoryObject, error) {
	var related []memory.MemoryObject
	for _, existing := range pool {
		if relatedTypes(candidate.ObjectType, existing.ObjectType) && existing.Status == memory.StatusActive {
			related = append(related, existing)
		}
	}
	if len(related) == 0 {
		return nil, nil
	}

	if m.embedder == nil {
		return exactMatches(candidate.Content, related), nil
	}

	candidateVec, err := m.embedder.Embed(ctx, candidate.Content)
	if err != nil {
		return exactMatches(candidate.Content, related), nil
	}

	var similar []memory.MemoryObject
	for _, existing := range related {
		existingVec, err := m.embedder.Embed(ctx, existing.Content)
		if err != nil {
			continue
		}
		sim, err := embedding.CosineSimilarity(candidateVec, existingVec)
		if err != nil {
			continue
		}
		if sim >= similarityGate {
			similar = append(similar, existing)
		}
	}
	return similar, nil
}

func exactMatches(content string, pool []memory.MemoryObject) []memory.MemoryObject {
	var out []memory.MemoryObject
	norm := normalize(content)
	for _, existing := range pool {
		if normalize(existing.Content) == norm {
			out = append(out, existing)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// merge folds a candidate into the strongest of its similar existing
// memories: it records the candidate's source event as new evidence, takes
// the maximum confidence on the 4-point scale (spec §4.E), and bumps
// access-style reinforcement since fresh corroborating evidence arrived.
func (m *Merger) merge(ctx context.Context, candidate extractor.Candidate, similar []memory.MemoryObject) (*memory.MemoryObject, error) {
	target := strongest(similar)

	newEvidence := append(append([]string{}, target.EvidenceEventIDs...), candidate.SourceEventID)
	confidence := target.Confidence
	if candidate.Confidence.Rank() > confidence.Rank() {
		confidence = candidate.Confidence
	}

	updated, err := m.applyMerge(ctx, target.ID, newEvidence, confidence)
	if err != nil {
		return nil, fmt.Errorf("reviewer: merge failed: %w", err)
	}
	if err := m.store.RecordAccess(ctx, target.ID); err != nil {
		return updated, nil // merge already succeeded; access accounting is best-effort
	}
	return updated, nil
}

func (m *Merger) applyMerge(ctx context.Context, id string, evidence []string, confidence memory.Confidence) (*memory.MemoryObject, error) {
	return m.store.UpdateContentAndEvidence(ctx, id, evidence, confidence)
}

// strongest picks the highest-confidence, most-accessed memory among
// similar candidates as the merge target, preferring confidence first then
// access count.
func strongest(similar []memory.MemoryObject) memory.MemoryObject {
	best := similar[0]
	for _, candidate := range similar[1:] {
		if candidate.Confidence.Rank() > best.Confidence.Rank() {
			best = candidate
			continue
		}
		if candidate.Confidence.Rank() == best.Confidence.Rank() && candidate.AccessCount > best.AccessCount {
			best = candidate
		}
	}
	return best
}
