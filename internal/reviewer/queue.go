package reviewer

import (
	"context"
	"fmt"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
	"github.com/franalgaba/alexandria/internal/extractor"
	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/memory"
)

// Item is a candidate sitting in the human review queue because the
// auto-merger/superseder could not resolve it confidently (spec §4.E
// "Review queue").
type Item struct {
	Candidate extractor.Candidate
	Conflict  *Conflict
}

// buildItem packages a candidate and the conflict it raised into a review
// queue entry.
func buildItem(candidate extractor.Candidate, conflict *Conflict) Item {
	return Item{Candidate: candidate, Conflict: conflict}
}

// Queue coordinates the merger and superseder over a stream of candidates,
// auto-approving the confident cases and routing the rest to human review
// (spec §4.E).
type Queue struct {
	store      *memory.Store
	merger     *Merger
	superseder *Superseder
	conflicts  []Conflict
	pending    []Item
}

// NewQueue constructs a Queue.
func NewQueue(store *memory.Store, merger *Merger, superseder *Superseder) *Queue {
	return &Queue{store: store, merger: merger, superseder: superseder}
}

// Pending returns the items currently awaiting human review.
func (q *Queue) Pending() []Item { return q.pending }

// Conflicts returns every conflict raised so far (pending and resolved).
func (q *Queue) Conflicts() []Conflict { return q.conflicts }

// autoThreshold is the default confidence rank at or above which a candidate with
// no similar existing memories is auto-approved outright rather than left
// pending (spec §4.E: "high-confidence, uncontested candidates skip the
// queue").
const autoThreshold = 3 // memory.ConfidenceHigh.Rank()

// Process runs one candidate through find-similar -> classify -> act. It
// returns the created or merged memory when the candidate resolved
// automatically, or nil when it was queued for review.
func (q *Queue) Process(ctx context.Context, candidate extractor.Candidate, pool []memory.MemoryObject) (*memory.MemoryObject, error) {
	timer := logging.StartTimer(logging.CategoryReviewer, "Process")
	defer timer.Stop()

	similar, err := q.merger.findSimilar(ctx, candidate, pool)
	if err != nil {
		return nil, fmt.Errorf("reviewer: findSimilar failed: %w", err)
	}

	if len(similar) == 0 {
		return q.autoProcess(ctx, candidate)
	}

	action, target, conflict := q.superseder.classify(candidate, similar)
	switch action {
	case "conflict":
		q.conflicts = append(q.conflicts, *conflict)
		q.pending = append(q.pending, buildItem(candidate, conflict))
		return nil, nil
	case "supersede":
		created, err := q.createApproved(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if err := q.store.Supersede(ctx, target.ID, created.ID); err != nil {
			if !alexandriaerr.Is(err, alexandriaerr.KindCycleDetected) {
				return created, fmt.Errorf("reviewer: supersede failed: %w", err)
			}
			logging.Get(logging.CategoryReviewer).Warn("supersede(%s, %s) refused: %v", target.ID, created.ID, err)
		}
		return created, nil
	default: // merge
		return q.merger.merge(ctx, candidate, similar)
	}
}

// autoProcess handles a candidate with no similar existing memories: high
// confidence candidates are auto-approved, everything else is queued
// (spec §4.E "autoProcess(threshold)").
func (q *Queue) autoProcess(ctx context.Context, candidate extractor.Candidate) (*memory.MemoryObject, error) {
	if candidate.Confidence.Rank() >= autoThreshold {
		return q.createApproved(ctx, candidate)
	}
	q.pending = append(q.pending, buildItem(candidate, nil))
	return nil, nil
}

func (q *Queue) createApproved(ctx context.Context, candidate extractor.Candidate) (*memory.MemoryObject, error) {
	created, err := q.store.Create(ctx, memory.CreateInput{
		Content:          candidate.Content,
		ObjectType:       candidate.ObjectType,
		Confidence:       candidate.Confidence,
		EvidenceEventIDs: []string{candidate.SourceEventID},
		EvidenceExcerpt:  candidate.EvidenceExcerpt,
		ReviewStatus:     memory.ReviewApproved,
	})
	if err != nil {
		return nil, fmt.Errorf("reviewer: create failed: %w", err)
	}
	return created, nil
}

// ResolveConflict applies a human decision to a pending conflict by id,
// removing it from the pending queue.
func (q *Queue) ResolveConflict(id, option, resolvedBy string) error {
	for i := range q.conflicts {
		if q.conflicts[i].ID != id {
			continue
		}
		q.conflicts[i].Resolve(option, resolvedBy)
		q.removePendingByConflict(id)
		return nil
	}
	return alexandriaerr.New(alexandriaerr.KindNotFound, fmt.Sprintf("conflict %q not found", id))
}

func (q *Queue) removePendingByConflict(conflictID string) {
	kept := q.pending[:0]
	for _, item := range q.pending {
		if item.Conflict != nil && item.Conflict.ID == conflictID {
			continue
		}
		kept = append(kept, item)
	}
	q.pending = kept
}
