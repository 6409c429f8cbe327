package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuseRanksHybridMatchesHighest(t *testing.T) {
	lexical := []string{"a", "b", "c"}
	vector := []string{"b", "a", "d"}

	results := fuse(lexical, vector, 0.5)

	byID := map[string]Result{}
	for _, r := range results {
		byID[r.Memory.ID] = r
	}

	assert.Equal(t, MatchHybrid, byID["a"].MatchType)
	assert.Equal(t, MatchHybrid, byID["b"].MatchType)
	assert.Equal(t, MatchLexical, byID["c"].MatchType)
	assert.Equal(t, MatchVector, byID["d"].MatchType)

	// "b" ranks #1 lexically-adjacent-best in vector (rank 1) and #2 in
	// lexical (rank 2); "a" is #1 lexical and #2 vector. Symmetric ranks
	// mean their RRF scores are equal, and both must outscore the
	// single-channel matches "c" and "d".
	assert.Greater(t, byID["a"].Score, byID["c"].Score)
	assert.Greater(t, byID["b"].Score, byID["d"].Score)
}

func TestFuseEmptyInputs(t *testing.T) {
	results := fuse(nil, nil, 0.5)
	assert.Empty(t, results)
}

func TestFuseOrdersByDescendingScore(t *testing.T) {
	results := fuse([]string{"x", "y", "z"}, nil, 0.5)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestFuseAlphaWeightsChannels(t *testing.T) {
	lexical := []string{"a"}
	vector := []string{"b"}

	lexicalHeavy := fuse(lexical, vector, 0.9)
	byID := map[string]Result{}
	for _, r := range lexicalHeavy {
		byID[r.Memory.ID] = r
	}
	assert.Greater(t, byID["a"].Score, byID["b"].Score)

	vectorHeavy := fuse(lexical, vector, 0.1)
	byID = map[string]Result{}
	for _, r := range vectorHeavy {
		byID[r.Memory.ID] = r
	}
	assert.Greater(t, byID["b"].Score, byID["a"].Score)
}
