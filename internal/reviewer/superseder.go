package reviewer

import (
	"github.com/franalgaba/alexandria/internal/extractor"
	"github.com/franalgaba/alexandria/internal/memory"
)

// Superseder decides whether a candidate should replace an existing
// memory outright (a fix that overturns a prior failed attempt, a new
// decision that overturns an old one) rather than merely merging evidence
// into it (spec §4.E "Superseder").
type Superseder struct{}

func NewSuperseder() *Superseder { return &Superseder{} }

// Verdict is the superseder's recommendation for one (candidate, existing)
// pair.
type Verdict struct {
	ShouldSupersede bool
	Reason          string
}

// analyse applies the type-specific supersession rules (spec §4.E):
//   - a known_fix supersedes any failed_attempt about the same subject
//   - a decision supersedes an existing decision (scope and age are not
//     compared)
//   - a constraint never auto-supersedes; classify merges it, or raises a
//     conflict when it contradicts
func (s *Superseder) analyse(candidate extractor.Candidate, existing memory.MemoryObject) Verdict {
	switch {
	case candidate.ObjectType == memory.TypeKnownFix && existing.ObjectType == memory.TypeFailedAttempt:
		return Verdict{ShouldSupersede: true, Reason: "known_fix supersedes prior failed_attempt on the same subject"}
	case candidate.ObjectType == memory.TypeDecision && existing.ObjectType == memory.TypeDecision:
		return Verdict{ShouldSupersede: true, Reason: "newer decision supersedes prior decision in the same scope"}
	case candidate.ObjectType == memory.TypeConstraint:
		return Verdict{ShouldSupersede: false, Reason: "constraints are never auto-superseded"}
	case containsContradiction(candidate.Content, existing.Content):
		return Verdict{ShouldSupersede: false, Reason: "contradiction detected, routed to review instead of auto-supersede"}
	default:
		return Verdict{ShouldSupersede: false}
	}
}

// classify decides, for a candidate and its similar existing memories,
// whether this is a merge, a supersession, or a conflict needing human
// review (spec §4.E decision table).
func (s *Superseder) classify(candidate extractor.Candidate, similar []memory.MemoryObject) (action string, target *memory.MemoryObject, conflict *Conflict) {
	for i := range similar {
		existing := similar[i]
		if containsContradiction(candidate.Content, existing.Content) {
			c := newConflict(ConflictContradiction, severityFor(candidate), candidate.Content,
				"review and choose which statement to keep", "candidate contradicts an existing active memory",
				[]string{existing.ID})
			return "conflict", nil, &c
		}
		verdict := s.analyse(candidate, existing)
		if verdict.ShouldSupersede {
			t := existing
			return "supersede", &t, nil
		}
	}
	return "merge", nil, nil
}

func severityFor(candidate extractor.Candidate) Severity {
	switch candidate.ObjectType {
	case memory.TypeConstraint, memory.TypeKnownFix:
		return SeverityHigh
	case memory.TypeDecision:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
