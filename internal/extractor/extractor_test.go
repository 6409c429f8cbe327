package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/franalgaba/alexandria/internal/memory"
)

func TestExtractIsDeterministic(t *testing.T) {
	content := "We decided to use Postgres for the event store. That didn't work because of connection limits."

	first := Extract("ev1", content, map[string]bool{})
	second := Extract("ev1", content, map[string]bool{})

	assert.Equal(t, first, second)
}

func TestExtractDedupsRepeatedPhrasing(t *testing.T) {
	seen := map[string]bool{}
	content := "We decided to use Postgres for storage."

	first := Extract("ev1", content, seen)
	assert.Len(t, first, 1)

	second := Extract("ev2", content, seen)
	assert.Empty(t, second, "identical canonicalised content should be deduped via the shingle set")
}

func TestExtractPicksHighestPriorityTypeOnTie(t *testing.T) {
	content := "That didn't work, the fix is to bump the connection pool size."
	candidates := Extract("ev1", content, map[string]bool{})

	assert.NotEmpty(t, candidates)
	assert.Equal(t, memory.TypeFailedAttempt, candidates[0].ObjectType,
		"failed_attempt must win the tie-break over known_fix per TypePriority when match counts are equal")
}

func TestExtractCanonicalizesCodeBlocks(t *testing.T) {
	content := "The fix is to use ```go\nfmt.Println(1)\n``` instead."
	candidates := Extract("ev1", content, map[string]bool{})

	assert.NotEmpty(t, candidates)
	assert.Contains(t, candidates[0].Content, "[code block]")
	assert.NotContains(t, candidates[0].Content, "fmt.Println")
}

func TestExtractConfidenceRisesWithMatchCount(t *testing.T) {
	single := Extract("ev1", "We decided to use Postgres.", map[string]bool{})
	assert.Len(t, single, 1)
	assert.Equal(t, memory.ConfidenceLow, single[0].Confidence, "one matching pattern maps to low confidence")

	double := Extract("ev1", "We decided to use Postgres, we chose it for durability.", map[string]bool{})
	assert.Len(t, double, 1)
	assert.Equal(t, memory.ConfidenceMedium, double[0].Confidence, "two matching patterns map to medium confidence")

	triple := Extract("ev1", "We decided to use Postgres, we chose it for durability, and decision: it's final.", map[string]bool{})
	assert.Len(t, triple, 1)
	assert.Equal(t, memory.ConfidenceHigh, triple[0].Confidence, "three or more matching patterns map to high confidence")
}

func TestExtractConfidenceCapsAtThreeMatches(t *testing.T) {
	content := "We decided to use Postgres, we chose it, we will use it, and went with it for good."
	candidates := Extract("ev1", content, map[string]bool{})

	assert.Len(t, candidates, 1)
	assert.Equal(t, memory.ConfidenceHigh, candidates[0].Confidence,
		"a fourth matching pattern still caps at the high tier (min(matchCount,3))")
}

func TestExtractSkipsSentencesMatchingNoPattern(t *testing.T) {
	candidates := Extract("ev1", "Nothing interesting happened today.", map[string]bool{})
	assert.Empty(t, candidates)
}

func TestExtractEnvironmentPattern(t *testing.T) {
	candidates := Extract("ev1", "This service is running on Go version 1.22.", map[string]bool{})

	assert.NotEmpty(t, candidates)
	assert.Equal(t, memory.TypeEnvironment, candidates[0].ObjectType)
}
