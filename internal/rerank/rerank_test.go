package rerank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/search"
)

func TestRerankOrdersByComposite(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	results := []search.Result{
		{Score: 0.1, Memory: memory.MemoryObject{ObjectType: memory.TypePreference, CreatedAt: now, ConfidenceTier: memory.TierHypothesis, Confidence: memory.ConfidenceLow}},
		{Score: 0.9, Memory: memory.MemoryObject{ObjectType: memory.TypeFailedAttempt, CreatedAt: now, ConfidenceTier: memory.TierGrounded, Confidence: memory.ConfidenceCertain, AccessCount: 5}},
	}

	scored := Rerank(results, DefaultWeights, now)
	assert.Len(t, scored, 2)
	assert.Equal(t, memory.TypeFailedAttempt, scored[0].Result.Memory.ObjectType)
	assert.Greater(t, scored[0].Composite, scored[1].Composite)
}

func TestForTaskPresetsSumToOne(t *testing.T) {
	for _, kind := range []TaskKind{TaskDebugging, TaskImplementing, TaskRefactoring, TaskGeneral} {
		w := ForTask(kind)
		sum := w.SearchScore + w.TypePriority + w.Confidence + w.Recency + w.Access
		assert.InDelta(t, 1.0, sum, 0.001, "weights for %s must sum to 1", kind)
	}
}

func TestTypePriorityScoreIncludesOptionalBoost(t *testing.T) {
	base := typePriorityScore(memory.TypeConvention, nil)
	assert.InDelta(t, 0.6, base, 0.001)

	boosted := typePriorityScore(memory.TypeConvention, map[memory.ObjectType]int{memory.TypeConvention: 15})
	assert.InDelta(t, 0.75, boosted, 0.001)
}

func TestConfidenceScoreTakesMaxOfTierAndLegacy(t *testing.T) {
	// low tier but certain legacy confidence: legacy wins.
	m := memory.MemoryObject{ConfidenceTier: memory.TierHypothesis, Confidence: memory.ConfidenceCertain}
	assert.InDelta(t, 1.0, confidenceScore(m), 0.001)

	// grounded tier but low legacy confidence: tier wins.
	m = memory.MemoryObject{ConfidenceTier: memory.TierGrounded, Confidence: memory.ConfidenceLow}
	assert.InDelta(t, 1.0, confidenceScore(m), 0.001)
}

func TestRecencyScoreDecaysExponentially(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	fresh := memory.MemoryObject{CreatedAt: now}
	thirtyDaysOld := memory.MemoryObject{CreatedAt: now.Add(-30 * 24 * time.Hour)}

	assert.InDelta(t, 1.0, recencyScore(fresh, now), 0.001)
	assert.InDelta(t, 0.3679, recencyScore(thirtyDaysOld, now), 0.001)
}

func TestAccessScoreClampsToOne(t *testing.T) {
	assert.InDelta(t, 0.0, accessScore(0), 0.001)
	assert.LessOrEqual(t, accessScore(1000), 1.0)
	assert.InDelta(t, 1.0, accessScore(10), 0.001)
}
