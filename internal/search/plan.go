package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/franalgaba/alexandria/internal/memory"
)

// baselineLimit is the fixed result count SearchWithPlan pulls from Search
// before filtering, boosting and trimming (spec §4.G "searchWithPlan runs
// the baseline search with a fixed limit of 50").
const baselineLimit = 50

// tokensPerResult approximates a packed result's token cost for the
// token-budget trim (spec §4.G: "trim to floor(tokenBudget/30)").
const tokensPerResult = 30

// recentlyVerifiedWindow is how fresh lastVerifiedAt must be to earn the
// recently-verified boost (spec §4.G "recentlyVerified: verified within the
// last 7 days").
const recentlyVerifiedWindow = 7 * 24 * time.Hour

// Boosts are the plan's score adjustments, applied multiplicative-then-
// additive (spec §4.G).
type Boosts struct {
	Grounded         float64 // multiplier applied if ConfidenceTier == grounded
	HasCodeRefs      float64 // multiplier applied if len(CodeRefs) > 0
	RecentlyVerified float64 // multiplier applied if LastVerifiedAt within 7 days
	TypeBoosts       map[memory.ObjectType]int
}

// Plan narrows, re-weights, and token-budgets a Search call (spec §4.G
// "searchWithPlan", §4.I retrieval plans produced by intent routing).
type Plan struct {
	TypeFilters   []memory.ObjectType
	MinConfidence memory.ConfidenceTier
	TokenBudget   int
	Boosts        Boosts
	IncludeStale  bool

	// Limit, if set, caps the final result count after the token-budget
	// trim — a caller convenience on top of the spec algorithm, not part
	// of it.
	Limit int
}

// SearchWithPlan runs the fixed-limit baseline search, filters by type and
// minimum confidence tier, applies the plan's boosts, re-sorts, and trims
// to the plan's token budget (spec §4.G).
func (e *Engine) SearchWithPlan(ctx context.Context, query string, plan Plan, scope string, now time.Time) ([]Result, error) {
	raw, err := e.Search(ctx, query, Options{Limit: baselineLimit})
	if err != nil {
		return nil, fmt.Errorf("search: plan search failed: %w", err)
	}

	var filtered []Result
	for _, r := range raw {
		if !passesPlan(r.Memory, plan) {
			continue
		}
		r.Score = applyBoosts(r.Memory, r.Score, plan.Boosts, scope, now)
		filtered = append(filtered, r)
	}

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })

	if plan.TokenBudget > 0 {
		max := plan.TokenBudget / tokensPerResult
		if len(filtered) > max {
			filtered = filtered[:max]
		}
	}
	if plan.Limit > 0 && len(filtered) > plan.Limit {
		filtered = filtered[:plan.Limit]
	}
	return filtered, nil
}

func passesPlan(m memory.MemoryObject, plan Plan) bool {
	if len(plan.TypeFilters) > 0 && !containsType(plan.TypeFilters, m.ObjectType) {
		return false
	}
	if plan.MinConfidence != "" && !m.ConfidenceTier.MeetsMinimum(plan.MinConfidence) {
		return false
	}
	if !plan.IncludeStale && m.Status == memory.StatusStale {
		return false
	}
	return true
}

func containsType(types []memory.ObjectType, t memory.ObjectType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// scopeMatch grades how well a memory's code references line up with the
// caller's current scope: 1.0 for an exact path match, 0.8 when the scope
// is a file inside a reference's module-level path, 0.1 as a global
// fallback when the memory carries no refs at all, 0 otherwise (spec §4.G
// "scope matching").
func scopeMatch(refs []memory.CodeReference, scope string) float64 {
	if scope == "" {
		return 0
	}
	if len(refs) == 0 {
		return 0.1
	}
	best := 0.0
	for _, ref := range refs {
		if ref.Path == "" {
			continue
		}
		if ref.Path == scope {
			return 1.0
		}
		if strings.HasPrefix(scope, ref.Path+"/") {
			if best < 0.8 {
				best = 0.8
			}
		}
	}
	return best
}

// applyBoosts applies the plan's boosts multiplicative-then-additive: the
// grounded/hasCodeRefs/recentlyVerified/scope multipliers first, then the
// per-type additive floor (spec §4.G: "boosts apply multiplicative-then-
// additive, in that order").
func applyBoosts(m memory.MemoryObject, score float64, b Boosts, scope string, now time.Time) float64 {
	if b.Grounded > 0 && m.ConfidenceTier == memory.TierGrounded {
		score *= b.Grounded
	}
	if b.HasCodeRefs > 0 && len(m.CodeRefs) > 0 {
		score *= b.HasCodeRefs
	}
	if b.RecentlyVerified > 0 && m.LastVerifiedAt != nil && now.Sub(*m.LastVerifiedAt) <= recentlyVerifiedWindow {
		score *= b.RecentlyVerified
	}
	score *= 1 + 0.5*scopeMatch(m.CodeRefs, scope)

	if boost, ok := b.TypeBoosts[m.ObjectType]; ok {
		score += float64(boost) / 100
	}
	return score
}
