package pack

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/rerank"
	"github.com/franalgaba/alexandria/internal/search"
	"github.com/franalgaba/alexandria/internal/staleness"
	"github.com/franalgaba/alexandria/internal/testutil"
)

func TestIncludesSectionTable(t *testing.T) {
	tests := []struct {
		level   Level
		section string
		want    bool
	}{
		{LevelMinimal, "constraints", true},
		{LevelMinimal, "warnings", true},
		{LevelMinimal, "query", false},
		{LevelMinimal, "related", false},
		{LevelMinimal, "history", false},
		{LevelTask, "constraints", true},
		{LevelTask, "warnings", true},
		{LevelTask, "query", true},
		{LevelTask, "related", false},
		{LevelTask, "history", false},
		{LevelDeep, "constraints", true},
		{LevelDeep, "warnings", true},
		{LevelDeep, "query", true},
		{LevelDeep, "related", true},
		{LevelDeep, "history", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, includesSection(tt.level, tt.section), "%s/%s", tt.level, tt.section)
	}
}

func TestAdmitRespectsTokenBudget(t *testing.T) {
	scored := []rerank.Scored{
		{Result: search.Result{Memory: memory.MemoryObject{Content: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}}}, // 40 chars ~10 tokens
		{Result: search.Result{Memory: memory.MemoryObject{Content: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}}},
		{Result: search.Result{Memory: memory.MemoryObject{Content: "cccccccccccccccccccccccccccccccccccccccc"}}},
	}
	out := admit(scored, 15, 10)
	assert.Len(t, out, 1, "only the first item fits a 15-token budget")
}

func TestAdmitRespectsItemCap(t *testing.T) {
	scored := make([]rerank.Scored, 5)
	for i := range scored {
		scored[i] = rerank.Scored{Result: search.Result{Memory: memory.MemoryObject{Content: "x"}}}
	}
	out := admit(scored, 1000, 2)
	assert.Len(t, out, 2)
}

func TestAdmitAlwaysIncludesFirstItemEvenIfOverBudget(t *testing.T) {
	scored := []rerank.Scored{
		{Result: search.Result{Memory: memory.MemoryObject{Content: "this content alone already exceeds a tiny budget by itself"}}},
	}
	out := admit(scored, 1, 10)
	assert.Len(t, out, 1)
}

func newTestAssembler(t *testing.T) (*Assembler, *memory.Store) {
	t.Helper()
	db := testutil.OpenDB(t)
	store := memory.NewStore(db, nil, 0)
	searchEngine := search.New(db, nil)
	checker := staleness.NewChecker(t.TempDir())
	return NewAssembler(store, searchEngine, checker), store
}

func approve(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	_, err := store.Approve(context.Background(), id)
	require.NoError(t, err)
}

func TestAssembleMinimalOnlyIncludesConstraintsAndWarnings(t *testing.T) {
	ctx := context.Background()
	assembler, store := newTestAssembler(t)

	c, err := store.Create(ctx, memory.CreateInput{Content: "must always validate input before persisting", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)
	approve(t, store, c.ID)
	_, err = store.Create(ctx, memory.CreateInput{Content: "prefer tabs over spaces", ObjectType: memory.TypePreference})
	require.NoError(t, err)

	p, err := assembler.Assemble(ctx, LevelMinimal, "", nil, nil, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, p.Sections, 1)
	assert.Equal(t, "constraints", p.Sections[0].Name)
	assert.Len(t, p.Sections[0].Results, 1)
}

// TestAssembleMinimalExcludesConventionDecisionAndHistoryTypes guards the
// invariant that minimal is constraints+warnings only: a convention
// (TypePriority 60) and a decision/known_fix/failed_attempt must never
// leak into the minimal pack even though they outrank preference.
func TestAssembleMinimalExcludesConventionDecisionAndHistoryTypes(t *testing.T) {
	ctx := context.Background()
	assembler, store := newTestAssembler(t)

	_, err := store.Create(ctx, memory.CreateInput{Content: "name test helpers with a Test prefix", ObjectType: memory.TypeConvention})
	require.NoError(t, err)
	_, err = store.Create(ctx, memory.CreateInput{Content: "chose sqlite over postgres for embeddability", ObjectType: memory.TypeDecision})
	require.NoError(t, err)
	_, err = store.Create(ctx, memory.CreateInput{Content: "retrying the upload without backoff just times out", ObjectType: memory.TypeFailedAttempt})
	require.NoError(t, err)
	_, err = store.Create(ctx, memory.CreateInput{Content: "restart the daemon after editing config.yaml", ObjectType: memory.TypeKnownFix})
	require.NoError(t, err)

	p, err := assembler.Assemble(ctx, LevelMinimal, "", nil, nil, time.Now().UTC())
	require.NoError(t, err)
	for _, section := range p.Sections {
		assert.NotEqual(t, "query", section.Name)
		assert.NotEqual(t, "related", section.Name)
		assert.NotEqual(t, "history", section.Name)
		for _, s := range section.Results {
			assert.NotEqual(t, memory.TypeConvention, s.Result.Memory.ObjectType)
			assert.NotEqual(t, memory.TypeDecision, s.Result.Memory.ObjectType)
			assert.NotEqual(t, memory.TypeFailedAttempt, s.Result.Memory.ObjectType)
			assert.NotEqual(t, memory.TypeKnownFix, s.Result.Memory.ObjectType)
		}
	}
}

func TestAssembleDeepIncludesAllSections(t *testing.T) {
	ctx := context.Background()
	assembler, store := newTestAssembler(t)

	c, err := store.Create(ctx, memory.CreateInput{Content: "must always validate input", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)
	approve(t, store, c.ID)
	_, err = store.Create(ctx, memory.CreateInput{Content: "prefer tabs over spaces", ObjectType: memory.TypePreference})
	require.NoError(t, err)

	p, err := assembler.Assemble(ctx, LevelDeep, "", nil, nil, time.Now().UTC())
	require.NoError(t, err)
	names := map[string]bool{}
	for _, s := range p.Sections {
		names[s.Name] = true
	}
	assert.True(t, names["constraints"])
	assert.True(t, names["related"])
}

func TestAssembleHotSectionIgnoresLevelGating(t *testing.T) {
	ctx := context.Background()
	assembler, store := newTestAssembler(t)

	m, err := store.Create(ctx, memory.CreateInput{Content: "prefer tabs over spaces", ObjectType: memory.TypePreference})
	require.NoError(t, err)

	p, err := assembler.Assemble(ctx, LevelMinimal, "", nil, []string{m.ID}, time.Now().UTC())
	require.NoError(t, err)

	var hot *Section
	for i := range p.Sections {
		if p.Sections[i].Name == "hot" {
			hot = &p.Sections[i]
		}
	}
	require.NotNil(t, hot, "hot section must appear even at minimal level")
	require.Len(t, hot.Results, 1)
	assert.Equal(t, m.ID, hot.Results[0].Result.Memory.ID)
}

func TestConstraintMemoriesRejectsTrailingColonAndUnapproved(t *testing.T) {
	ctx := context.Background()
	assembler, store := newTestAssembler(t)

	unapproved, err := store.Create(ctx, memory.CreateInput{Content: "never commit secrets to the repo", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)
	_ = unapproved

	headerOnly, err := store.Create(ctx, memory.CreateInput{Content: "Constraints:", ObjectType: memory.TypeConstraint})
	require.NoError(t, err)
	approve(t, store, headerOnly.ID)

	scored, err := assembler.constraintMemories(ctx, LevelMinimal, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestBuildRevalidationPromptsPrioritizesStaleConstraints(t *testing.T) {
	ctx := context.Background()
	assembler, store := newTestAssembler(t)

	m, err := store.Create(ctx, memory.CreateInput{
		Content:    "must always validate input",
		ObjectType: memory.TypeConstraint,
		CodeRefs:   []memory.CodeReference{{Type: memory.RefFile, Path: "gone.go", ContentHash: "whatever"}},
	})
	require.NoError(t, err)

	p := &Pack{Sections: []Section{{Name: "constraints", Results: []rerank.Scored{
		{Result: search.Result{Memory: *m}},
	}}}}

	prompts := assembler.buildRevalidationPrompts(ctx, p)
	require.Len(t, prompts, 1)
	assert.Equal(t, m.ID, prompts[0].MemoryID)
	assert.Equal(t, 25, prompts[0].Priority) // stale(20) + constraint bump(5)
}
