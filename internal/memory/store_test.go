package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franalgaba/alexandria/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutil.OpenDB(t)
	return NewStore(db, nil, 0)
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m, err := s.Create(ctx, CreateInput{Content: "always run migrations before deploy", ObjectType: TypeConstraint})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, m.Status)
	assert.Equal(t, ConfidenceMedium, m.Confidence)

	fetched, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, m.Content, fetched.Content)
}

func TestCreateRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), CreateInput{Content: "   ", ObjectType: TypeConstraint})
	assert.Error(t, err)
}

func TestCreateRejectsUnknownObjectType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), CreateInput{Content: "x", ObjectType: "not_a_real_type"})
	assert.Error(t, err)
}

func TestGetByPrefixResolvesUniquePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, err := s.Create(ctx, CreateInput{Content: "use gofmt for formatting", ObjectType: TypeConvention})
	require.NoError(t, err)

	found, err := s.GetByPrefix(ctx, m.ID[:10])
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, m.ID, found.ID)
}

func TestGetByPrefixNotFound(t *testing.T) {
	s := newTestStore(t)
	found, err := s.GetByPrefix(context.Background(), "deadbeefde")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUpdateContentReturnsNilForMissingID(t *testing.T) {
	s := newTestStore(t)
	m, err := s.UpdateContent(context.Background(), "does-not-exist", "new content")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestApproveAndReject(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, err := s.Create(ctx, CreateInput{Content: "prefer small commits", ObjectType: TypePreference})
	require.NoError(t, err)

	approved, err := s.Approve(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ReviewApproved, approved.ReviewStatus)
	assert.NotNil(t, approved.ReviewedAt)

	rejected, err := s.Reject(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ReviewRejected, rejected.ReviewStatus)
}

func TestSupersedeUpdatesBothSides(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	oldM, err := s.Create(ctx, CreateInput{Content: "retry on 500", ObjectType: TypeFailedAttempt})
	require.NoError(t, err)
	newM, err := s.Create(ctx, CreateInput{Content: "fixed by adding backoff", ObjectType: TypeKnownFix})
	require.NoError(t, err)

	require.NoError(t, s.Supersede(ctx, oldM.ID, newM.ID))

	oldFetched, err := s.Get(ctx, oldM.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuperseded, oldFetched.Status)
	assert.Equal(t, newM.ID, oldFetched.SupersededBy)

	newFetched, err := s.Get(ctx, newM.ID)
	require.NoError(t, err)
	assert.Contains(t, newFetched.Supersedes, oldM.ID)
}

func TestSupersedeRefusesSelfSupersession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, err := s.Create(ctx, CreateInput{Content: "x", ObjectType: TypeConstraint})
	require.NoError(t, err)

	err = s.Supersede(ctx, m.ID, m.ID)
	assert.Error(t, err)
}

func TestSupersedeRefusesCycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, CreateInput{Content: "a", ObjectType: TypeDecision})
	require.NoError(t, err)
	b, err := s.Create(ctx, CreateInput{Content: "b", ObjectType: TypeDecision})
	require.NoError(t, err)

	require.NoError(t, s.Supersede(ctx, a.ID, b.ID))
	err = s.Supersede(ctx, b.ID, a.ID)
	assert.Error(t, err)
}

func TestResolveActiveWalksChain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, CreateInput{Content: "a", ObjectType: TypeDecision})
	require.NoError(t, err)
	b, err := s.Create(ctx, CreateInput{Content: "b", ObjectType: TypeDecision})
	require.NoError(t, err)
	c, err := s.Create(ctx, CreateInput{Content: "c", ObjectType: TypeDecision})
	require.NoError(t, err)

	require.NoError(t, s.Supersede(ctx, a.ID, b.ID))
	require.NoError(t, s.Supersede(ctx, b.ID, c.ID))

	resolved, err := s.ResolveActive(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, c.ID, resolved.ID)
}

func TestRecordAccessBumpsCountAndStrength(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, err := s.Create(ctx, CreateInput{Content: "x", ObjectType: TypeConstraint})
	require.NoError(t, err)

	require.NoError(t, s.RecordAccess(ctx, m.ID))
	fetched, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.AccessCount)
	assert.Greater(t, fetched.Strength, 0.5)
	assert.NotNil(t, fetched.LastAccessed)
}

func TestRecordOutcomeSmoothsScore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, err := s.Create(ctx, CreateInput{Content: "x", ObjectType: TypeConstraint})
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.OutcomeScore)

	require.NoError(t, s.RecordOutcome(ctx, Outcome{MemoryID: m.ID, Outcome: OutcomeHelpful}))
	fetched, err := s.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Greater(t, fetched.OutcomeScore, 0.5)
}

func TestUpdateContentAndEvidenceDedupsAndRaisesConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m, err := s.Create(ctx, CreateInput{Content: "x", ObjectType: TypeConstraint, Confidence: ConfidenceLow, EvidenceEventIDs: []string{"ev1"}})
	require.NoError(t, err)

	updated, err := s.UpdateContentAndEvidence(ctx, m.ID, []string{"ev1", "ev1", "ev2"}, ConfidenceHigh)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, updated.Confidence)
	assert.Equal(t, []string{"ev1", "ev2"}, updated.EvidenceEventIDs)
}

func TestListFiltersByType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Create(ctx, CreateInput{Content: "a", ObjectType: TypeConstraint})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{Content: "b", ObjectType: TypePreference})
	require.NoError(t, err)

	results, err := s.List(ctx, ListFilter{ObjectType: TypeConstraint})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, TypeConstraint, results[0].ObjectType)
}
