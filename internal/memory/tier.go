package memory

import "time"

// groundedWindow is how recently lastVerifiedAt must fall for the grounded
// tier (spec §4.D: "within 7 days").
const groundedWindow = 7 * 24 * time.Hour

// DeriveTier computes confidenceTier as a pure function of
// (codeRefs, lastVerifiedAt, reviewStatus, evidenceEventIds), per spec §4.D
// and the universally-quantified invariant of spec §8 item 1.
func DeriveTier(m MemoryObject, now time.Time) ConfidenceTier {
	hasCodeRefs := len(m.CodeRefs) > 0
	hasEvidence := len(m.EvidenceEventIDs) > 0

	if hasCodeRefs && m.LastVerifiedAt != nil && now.Sub(*m.LastVerifiedAt) <= groundedWindow {
		return TierGrounded
	}
	if m.ReviewStatus == ReviewApproved || hasEvidence {
		return TierObserved
	}
	if hasCodeRefs || m.ReviewStatus == ReviewPending {
		return TierInferred
	}
	return TierHypothesis
}
