package reviewer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franalgaba/alexandria/internal/extractor"
	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/testutil"
)

// fakeEmbedder returns a fixed unit vector for every input, so every pair of
// texts is judged maximally similar. It exercises the cosine-similarity path
// in findSimilar without depending on an external embedding provider.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = fakeEmbedder{}.Embed(ctx, texts[i])
	}
	return out, nil
}
func (fakeEmbedder) Dimensions() int { return 3 }
func (fakeEmbedder) Name() string    { return "fake" }

func newTestQueue(t *testing.T) (*Queue, *memory.Store) {
	t.Helper()
	db := testutil.OpenDB(t)
	store := memory.NewStore(db, nil, 0)
	merger := NewMerger(store, fakeEmbedder{})
	superseder := NewSuperseder()
	return NewQueue(store, merger, superseder), store
}

func TestProcessAutoApprovesHighConfidenceWithNoSimilar(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	candidate := extractor.Candidate{Content: "must never commit secrets", ObjectType: memory.TypeConstraint, Confidence: memory.ConfidenceHigh, SourceEventID: "ev1"}
	created, err := q.Process(ctx, candidate, nil)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, memory.ReviewApproved, created.ReviewStatus)
}

func TestProcessQueuesLowConfidenceWithNoSimilar(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	candidate := extractor.Candidate{Content: "i'd rather use tabs", ObjectType: memory.TypePreference, Confidence: memory.ConfidenceLow, SourceEventID: "ev1"}
	created, err := q.Process(ctx, candidate, nil)
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Len(t, q.Pending(), 1)
}

func TestProcessMergesExactDuplicateContent(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t)

	existing, err := store.Create(ctx, memory.CreateInput{
		Content: "use gofmt for formatting", ObjectType: memory.TypeConvention,
		Confidence: memory.ConfidenceMedium, EvidenceEventIDs: []string{"ev1"},
	})
	require.NoError(t, err)

	candidate := extractor.Candidate{Content: "use gofmt for formatting", ObjectType: memory.TypeConvention, Confidence: memory.ConfidenceHigh, SourceEventID: "ev2"}
	merged, err := q.Process(ctx, candidate, []memory.MemoryObject{*existing})
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, existing.ID, merged.ID)
	assert.Equal(t, memory.ConfidenceHigh, merged.Confidence)
	assert.ElementsMatch(t, []string{"ev1", "ev2"}, merged.EvidenceEventIDs)
}

func TestProcessSupersedesFailedAttemptWithKnownFix(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t)

	existing, err := store.Create(ctx, memory.CreateInput{
		Content: "retry request immediately on timeout", ObjectType: memory.TypeFailedAttempt, Confidence: memory.ConfidenceMedium,
	})
	require.NoError(t, err)

	candidate := extractor.Candidate{Content: "retry request immediately on timeout", ObjectType: memory.TypeKnownFix, Confidence: memory.ConfidenceHigh, SourceEventID: "ev2"}
	created, err := q.Process(ctx, candidate, []memory.MemoryObject{*existing})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEqual(t, existing.ID, created.ID)

	oldFetched, err := store.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.StatusSuperseded, oldFetched.Status)
	assert.Equal(t, created.ID, oldFetched.SupersededBy)
}

func TestProcessFlagsContradictionAsConflict(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t)

	existing, err := store.Create(ctx, memory.CreateInput{
		Content: "must always use postgres for storage", ObjectType: memory.TypeConstraint, Confidence: memory.ConfidenceHigh,
	})
	require.NoError(t, err)

	candidate := extractor.Candidate{Content: "must never use postgres for storage", ObjectType: memory.TypeConstraint, Confidence: memory.ConfidenceHigh, SourceEventID: "ev2"}
	created, err := q.Process(ctx, candidate, []memory.MemoryObject{*existing})
	require.NoError(t, err)
	assert.Nil(t, created)
	require.Len(t, q.Conflicts(), 1)
	assert.Equal(t, ConflictContradiction, q.Conflicts()[0].ConflictType)
	assert.Len(t, q.Pending(), 1)
}

func TestResolveConflictRemovesFromPending(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t)

	existing, err := store.Create(ctx, memory.CreateInput{
		Content: "must always use postgres for storage", ObjectType: memory.TypeConstraint, Confidence: memory.ConfidenceHigh,
	})
	require.NoError(t, err)

	candidate := extractor.Candidate{Content: "must never use postgres for storage", ObjectType: memory.TypeConstraint, Confidence: memory.ConfidenceHigh, SourceEventID: "ev2"}
	_, err = q.Process(ctx, candidate, []memory.MemoryObject{*existing})
	require.NoError(t, err)
	require.Len(t, q.Pending(), 1)

	conflictID := q.Conflicts()[0].ID
	require.NoError(t, q.ResolveConflict(conflictID, "kept existing", "human"))
	assert.Empty(t, q.Pending())
	assert.Equal(t, ConflictResolved, q.Conflicts()[0].Status)
}

func TestContainsContradiction(t *testing.T) {
	assert.True(t, containsContradiction("must always run tests", "must never run tests"))
	assert.False(t, containsContradiction("prefer tabs", "prefer spaces"))
}
