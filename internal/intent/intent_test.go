package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/franalgaba/alexandria/internal/memory"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"why is this throwing an exception on startup", IntentDebugging},
		{"how do we name test helper functions", IntentConventions},
		{"how do i implement rate limiting for this endpoint", IntentImplementation},
		{"why did we choose sqlite over postgres for this", IntentArchitecture},
		{"what did we try before switching to WAL mode", IntentHistory},
		{"is it safe to delete this migration file", IntentValidation},
		{"what time is it", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestRouteReturnsConsistentPlan(t *testing.T) {
	router := NewRouter()
	i, plan := router.Route("why does this keep failing with a stack trace")
	assert.Equal(t, IntentDebugging, i)
	assert.Contains(t, plan.TypeFilters, memory.TypeFailedAttempt)
}
