package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTier(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	recentVerify := now.Add(-2 * 24 * time.Hour)
	staleVerify := now.Add(-30 * 24 * time.Hour)

	tests := []struct {
		name string
		m    MemoryObject
		want ConfidenceTier
	}{
		{
			name: "grounded: code refs verified within window",
			m: MemoryObject{
				CodeRefs:       []CodeReference{{Type: RefFile, Path: "a.go"}},
				LastVerifiedAt: &recentVerify,
			},
			want: TierGrounded,
		},
		{
			name: "observed: verification window expired but review approved",
			m: MemoryObject{
				CodeRefs:       []CodeReference{{Type: RefFile, Path: "a.go"}},
				LastVerifiedAt: &staleVerify,
				ReviewStatus:   ReviewApproved,
			},
			want: TierObserved,
		},
		{
			name: "observed: no code refs but has evidence",
			m: MemoryObject{
				EvidenceEventIDs: []string{"ev1"},
			},
			want: TierObserved,
		},
		{
			name: "inferred: code refs present, no recent verification, not approved",
			m: MemoryObject{
				CodeRefs: []CodeReference{{Type: RefFile, Path: "a.go"}},
			},
			want: TierInferred,
		},
		{
			name: "inferred: pending review with no code refs or evidence",
			m: MemoryObject{
				ReviewStatus: ReviewPending,
			},
			want: TierInferred,
		},
		{
			name: "hypothesis: nothing backing it",
			m: MemoryObject{
				ReviewStatus: ReviewRejected,
			},
			want: TierHypothesis,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveTier(tt.m, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfidenceTierMeetsMinimum(t *testing.T) {
	assert.True(t, TierGrounded.MeetsMinimum(TierHypothesis))
	assert.True(t, TierObserved.MeetsMinimum(TierObserved))
	assert.False(t, TierInferred.MeetsMinimum(TierObserved))
	assert.False(t, TierHypothesis.MeetsMinimum(TierGrounded))
}
