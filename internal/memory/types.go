// Package memory implements the memory-object store: the typed object
// model, its lifecycle transitions, and the derived confidence-tier rule
// (spec §3, §4.D). It is the sole mutator of memory rows; every other
// component receives immutable snapshots (spec §9 "Ownership").
package memory

import (
	"encoding/json"
	"time"
)

// ObjectType is one of the seven curated memory kinds (spec §3).
type ObjectType string

const (
	TypeDecision       ObjectType = "decision"
	TypePreference     ObjectType = "preference"
	TypeConvention     ObjectType = "convention"
	TypeKnownFix       ObjectType = "known_fix"
	TypeConstraint     ObjectType = "constraint"
	TypeFailedAttempt  ObjectType = "failed_attempt"
	TypeEnvironment    ObjectType = "environment"
)

// ValidObjectType reports whether t is one of the seven recognised types.
func ValidObjectType(t ObjectType) bool {
	switch t {
	case TypeDecision, TypePreference, TypeConvention, TypeKnownFix, TypeConstraint, TypeFailedAttempt, TypeEnvironment:
		return true
	}
	return false
}

// TypePriority is the fixed tie-break / reranker ordering from spec §4.C
// and §4.H: failed_attempt > known_fix > constraint > decision > convention
// > preference > environment.
var TypePriority = map[ObjectType]int{
	TypeFailedAttempt: 100,
	TypeKnownFix:      90,
	TypeConstraint:    85,
	TypeDecision:      80,
	TypeConvention:    60,
	TypePreference:    40,
	TypeEnvironment:   30,
}

// ScopeType is the granularity a memory applies at.
type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
	ScopeModule  ScopeType = "module"
	ScopeFile    ScopeType = "file"
)

// Scope is where a memory applies.
type Scope struct {
	Type ScopeType `json:"type"`
	Path string    `json:"path,omitempty"`
}

// Status is the memory's lifecycle state (spec §3).
type Status string

const (
	StatusActive     Status = "active"
	StatusStale      Status = "stale"
	StatusSuperseded Status = "superseded"
	StatusRetired    Status = "retired"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusStale, StatusSuperseded, StatusRetired:
		return true
	}
	return false
}

// Confidence is the legacy user-supplied confidence level.
type Confidence string

const (
	ConfidenceCertain Confidence = "certain"
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
)

func ValidConfidence(c Confidence) bool {
	switch c {
	case ConfidenceCertain, ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// confidenceRank is used by the Merger to pick "maximum confidence on a
// 4-point scale" (spec §4.E).
var confidenceRank = map[Confidence]int{
	ConfidenceLow:     1,
	ConfidenceMedium:  2,
	ConfidenceHigh:    3,
	ConfidenceCertain: 4,
}

// Rank returns c's position on the 4-point confidence scale (1=low..4=certain).
func (c Confidence) Rank() int { return confidenceRank[c] }

// ConfidenceTier is the derived trust level (spec §4.D, §8 invariant 1).
type ConfidenceTier string

const (
	TierGrounded  ConfidenceTier = "grounded"
	TierObserved  ConfidenceTier = "observed"
	TierInferred  ConfidenceTier = "inferred"
	TierHypothesis ConfidenceTier = "hypothesis"
)

// tierRank orders tiers grounded(3) > observed(2) > inferred(1) > hypothesis(0),
// used to implement "minimum X" semantics (spec §4.G, §9 canonicalisation).
var tierRank = map[ConfidenceTier]int{
	TierGrounded:   3,
	TierObserved:   2,
	TierInferred:   1,
	TierHypothesis: 0,
}

// Rank returns the tier's position for >= comparisons.
func (t ConfidenceTier) Rank() int { return tierRank[t] }

// MeetsMinimum reports whether t is at least as high as min on the
// grounded>observed>inferred>hypothesis order (spec §4.G: "minimum X keeps
// X and all higher").
func (t ConfidenceTier) MeetsMinimum(min ConfidenceTier) bool {
	return t.Rank() >= min.Rank()
}

// ReviewStatus tracks whether a memory has passed human/auto review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func ValidReviewStatus(s ReviewStatus) bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

// CodeReferenceType distinguishes what a CodeReference points at.
type CodeReferenceType string

const (
	RefFile      CodeReferenceType = "file"
	RefSymbol    CodeReferenceType = "symbol"
	RefLineRange CodeReferenceType = "line_range"
)

// LineRange is an inclusive [Start, End] line span.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CodeReference ties a memory to a location in the working tree (spec §3).
type CodeReference struct {
	Type             CodeReferenceType `json:"type"`
	Path             string            `json:"path"`
	Symbol           string            `json:"symbol,omitempty"`
	LineRange        *LineRange        `json:"lineRange,omitempty"`
	VerifiedAtCommit string            `json:"verifiedAtCommit,omitempty"`
	ContentHash      string            `json:"contentHash,omitempty"`
}

// DecisionRecord is the structured payload for object_type=decision.
type DecisionRecord struct {
	Alternatives []string `json:"alternatives,omitempty"`
	Rationale    string   `json:"rationale,omitempty"`
	Tradeoffs    string   `json:"tradeoffs,omitempty"`
	DecidedBy    string   `json:"decidedBy,omitempty"`
}

// ContractRecord is the structured payload for an interface/contract memory.
type ContractRecord struct {
	Name         string `json:"name"`
	ContractType string `json:"contractType"`
	Definition   string `json:"definition"`
	Version      string `json:"version,omitempty"`
}

// Structured is the tagged-variant wrapper for decision|contract payloads
// (spec §9: "Require a tagged-variant representation for structured").
type Structured struct {
	Decision *DecisionRecord `json:"decision,omitempty"`
	Contract *ContractRecord `json:"contract,omitempty"`
}

func (s *Structured) Empty() bool {
	return s == nil || (s.Decision == nil && s.Contract == nil)
}

// MemoryObject is the curated unit of knowledge (spec §3).
type MemoryObject struct {
	ID    string     `json:"id"`
	Content string   `json:"content"`
	ObjectType ObjectType `json:"objectType"`
	Scope Scope       `json:"scope"`

	Status       Status `json:"status"`
	SupersededBy string `json:"supersededBy,omitempty"`

	Confidence     Confidence     `json:"confidence"`
	ConfidenceTier ConfidenceTier `json:"confidenceTier"`

	EvidenceEventIDs []string `json:"evidenceEventIds"`
	EvidenceExcerpt  string   `json:"evidenceExcerpt"`

	ReviewStatus ReviewStatus `json:"reviewStatus"`
	ReviewedAt   *time.Time   `json:"reviewedAt,omitempty"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	AccessCount  int        `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`

	CodeRefs       []CodeReference `json:"codeRefs"`
	LastVerifiedAt *time.Time      `json:"lastVerifiedAt,omitempty"`

	Supersedes []string `json:"supersedes"`

	Structured *Structured `json:"structured,omitempty"`

	Strength         float64    `json:"strength"`
	LastReinforcedAt *time.Time `json:"lastReinforcedAt,omitempty"`
	OutcomeScore     float64    `json:"outcomeScore"`
}

// OutcomeKind is the feedback polarity recorded against a memory.
type OutcomeKind string

const (
	OutcomeHelpful   OutcomeKind = "helpful"
	OutcomeUnhelpful OutcomeKind = "unhelpful"
	OutcomeNeutral   OutcomeKind = "neutral"
)

// Outcome is a single feedback record (spec §3).
type Outcome struct {
	ID        string
	MemoryID  string
	SessionID string
	Timestamp time.Time
	Outcome   OutcomeKind
	Context   string
}

// --- tolerant JSON helpers (spec §9: malformed JSON never crashes a read) ---

func marshalOrEmpty(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalTolerant(data string, v interface{}) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}
