// Package rerank applies a composite, task-aware scoring function on top
// of raw search results (spec §4.H).
package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/search"
)

// Weights is the composite scorer's sub-score blend (spec §4.H).
type Weights struct {
	SearchScore  float64
	TypePriority float64
	Confidence   float64
	Recency      float64
	Access       float64

	// TypeBoosts is the optional additive per-type boost folded into the
	// type-priority sub-score (spec §4.H: "(fixedPriority[type] +
	// optionalTypeBoost) / 100"). Task presets raise specific types here.
	TypeBoosts map[memory.ObjectType]int
}

// DefaultWeights matches spec §4.H's default blend.
var DefaultWeights = Weights{
	SearchScore:  0.4,
	TypePriority: 0.25,
	Confidence:   0.15,
	Recency:      0.1,
	Access:       0.1,
}

// TaskKind selects a Weights preset tuned for the kind of work in progress
// (spec §4.H "forTask(kind)").
type TaskKind string

const (
	TaskDebugging    TaskKind = "debugging"
	TaskImplementing TaskKind = "implementing"
	TaskRefactoring  TaskKind = "refactoring"
	TaskGeneral      TaskKind = "general"
)

// ForTask returns the Weights preset for kind: each raises the type-priority
// weight and boosts the specific object types that matter most for that
// kind of work (spec §4.H "forTask(kind) ... raises typePriorityWeight and
// specific typeBoosts").
func ForTask(kind TaskKind) Weights {
	switch kind {
	case TaskDebugging:
		return Weights{
			SearchScore: 0.3, TypePriority: 0.35, Confidence: 0.15, Recency: 0.1, Access: 0.1,
			TypeBoosts: map[memory.ObjectType]int{
				memory.TypeFailedAttempt: 15,
				memory.TypeKnownFix:      10,
				memory.TypeConstraint:    5,
			},
		}
	case TaskImplementing:
		return Weights{
			SearchScore: 0.35, TypePriority: 0.3, Confidence: 0.15, Recency: 0.1, Access: 0.1,
			TypeBoosts: map[memory.ObjectType]int{
				memory.TypeDecision:   10,
				memory.TypeConvention: 10,
				memory.TypeKnownFix:   5,
			},
		}
	case TaskRefactoring:
		return Weights{
			SearchScore: 0.35, TypePriority: 0.3, Confidence: 0.15, Recency: 0.1, Access: 0.1,
			TypeBoosts: map[memory.ObjectType]int{
				memory.TypeConvention: 15,
				memory.TypeConstraint: 10,
			},
		}
	default:
		return DefaultWeights
	}
}

// tierBoost is spec §4.H's confidence-tier multiplier, halved so it lands
// in [0,1] before blending with legacyBoost.
var tierBoost = map[memory.ConfidenceTier]float64{
	memory.TierGrounded:   2.0,
	memory.TierObserved:   1.5,
	memory.TierInferred:   1.0,
	memory.TierHypothesis: 0.5,
}

// legacyBoost normalises the user-supplied Confidence field onto [0,1]
// (spec §4.H: "confidence = max(tierBoost/2, legacyBoost)").
var legacyBoost = map[memory.Confidence]float64{
	memory.ConfidenceCertain: 1.0,
	memory.ConfidenceHigh:    0.75,
	memory.ConfidenceMedium:  0.5,
	memory.ConfidenceLow:     0.25,
}

// accessNorm is the denominator of the access-frequency sub-score (spec
// §4.H: "log1p(accessCount·2) / log1p(10·2)").
var accessNorm = math.Log1p(10 * 2)

// Scored pairs a search result with its composite score and sub-scores,
// exposed for debugging/tooling (spec §4.H: "scores must be explainable").
type Scored struct {
	Result       search.Result
	Composite    float64
	SearchScore  float64
	TypePriority float64
	Confidence   float64
	Recency      float64
	Access       float64
}

// Rerank recomputes a composite score for every result and returns them
// sorted descending (spec §4.H).
func Rerank(results []search.Result, w Weights, now time.Time) []Scored {
	out := make([]Scored, len(results))
	for i, r := range results {
		searchScore := r.Score
		typePriority := typePriorityScore(r.Memory.ObjectType, w.TypeBoosts)
		confidence := confidenceScore(r.Memory)
		recency := recencyScore(r.Memory, now)
		access := accessScore(r.Memory.AccessCount)

		composite := w.SearchScore*searchScore + w.TypePriority*typePriority + w.Confidence*confidence + w.Recency*recency + w.Access*access

		out[i] = Scored{
			Result: r, Composite: composite,
			SearchScore: searchScore, TypePriority: typePriority, Confidence: confidence, Recency: recency, Access: access,
		}
	}

	sortDescending(out)
	return out
}

// typePriorityScore is (fixedPriority[type] + optionalTypeBoost) / 100
// (spec §4.H).
func typePriorityScore(t memory.ObjectType, boosts map[memory.ObjectType]int) float64 {
	return (float64(memory.TypePriority[t]) + float64(boosts[t])) / 100
}

// confidenceScore blends the derived confidence tier with the legacy
// user-supplied confidence level, taking whichever reads more confident
// (spec §4.H).
func confidenceScore(m memory.MemoryObject) float64 {
	return math.Max(tierBoost[m.ConfidenceTier]/2, legacyBoost[m.Confidence])
}

// recencyScore is an exponential decay off days since creation (spec §4.H:
// "exp(-daysSinceCreation / 30)").
func recencyScore(m memory.MemoryObject, now time.Time) float64 {
	days := now.Sub(m.CreatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / 30)
}

// accessScore is a log-scaled, clamped access-frequency sub-score (spec
// §4.H: "log1p(accessCount·2) / log1p(10·2) clamped to 1").
func accessScore(accessCount int) float64 {
	score := math.Log1p(float64(accessCount)*2) / accessNorm
	if score > 1 {
		return 1
	}
	return score
}

func sortDescending(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Composite > scored[j].Composite })
}
