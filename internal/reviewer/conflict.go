// Package reviewer implements auto-merge, contradiction detection, and the
// review queue that sits between extracted candidates and approved memory
// objects (spec §4.E).
package reviewer

import (
	"strings"
	"time"

	"github.com/franalgaba/alexandria/internal/ids"
)

// ConflictType distinguishes why a candidate was flagged instead of merged.
type ConflictType string

const (
	ConflictContradiction ConflictType = "contradiction"
	ConflictDuplicate     ConflictType = "duplicate"
	ConflictScopeOverlap  ConflictType = "scope_overlap"
)

// Severity is how urgently a conflict needs human attention.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ConflictStatus tracks resolution lifecycle.
type ConflictStatus string

const (
	ConflictPending  ConflictStatus = "pending"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict is a flagged interaction between a new candidate and one or more
// existing memories that the auto-merger declined to resolve unattended
// (spec §4.E, §3).
type Conflict struct {
	ID                  string
	ConflictType        ConflictType
	Severity            Severity
	NewCandidateContent string
	ExistingMemoryIDs   []string
	SuggestedResolution string
	Description         string
	Status              ConflictStatus
	ResolvedOption      string
	ResolvedBy          string
	CreatedAt           time.Time
	ResolvedAt          *time.Time
}

func newConflict(ct ConflictType, sev Severity, candidateContent, suggestion, description string, existing []string) Conflict {
	return Conflict{
		ID:                  ids.New(),
		ConflictType:        ct,
		Severity:            sev,
		NewCandidateContent: candidateContent,
		ExistingMemoryIDs:   existing,
		SuggestedResolution: suggestion,
		Description:         description,
		Status:              ConflictPending,
		CreatedAt:           time.Now().UTC(),
	}
}

// Resolve marks c resolved with the chosen option, recording who chose it.
func (c *Conflict) Resolve(option, resolvedBy string) {
	now := time.Now().UTC()
	c.Status = ConflictResolved
	c.ResolvedOption = option
	c.ResolvedBy = resolvedBy
	c.ResolvedAt = &now
}

// contradictionPairs pairs phrases that, when one appears in an existing
// memory and its negation/opposite appears in a candidate about the same
// subject, signal a contradiction rather than a duplicate (spec §4.E
// "contradiction lexicon"). Matching is a coarse substring heuristic, not
// full NLI; it exists to catch the common "always X" vs "never X" case.
var contradictionPairs = [][2]string{
	{"always", "never"},
	{"must", "must not"},
	{"should", "should not"},
	{"required", "forbidden"},
	{"enabled", "disabled"},
	{"use", "don't use"},
}

func containsContradiction(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range contradictionPairs {
		if strings.Contains(la, pair[0]) && strings.Contains(lb, pair[1]) {
			return true
		}
		if strings.Contains(la, pair[1]) && strings.Contains(lb, pair[0]) {
			return true
		}
	}
	return false
}
