// Package intent classifies a user query into one of seven retrieval
// intents and routes it to a RetrievalPlan (spec §4.I).
package intent

import (
	"regexp"
	"strings"

	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/search"
)

// Intent is one of the seven recognised query intents (spec §4.I).
type Intent string

const (
	IntentDebugging     Intent = "debugging"
	IntentConventions   Intent = "conventions"
	IntentImplementation Intent = "implementation"
	IntentArchitecture  Intent = "architecture"
	IntentHistory       Intent = "history"
	IntentValidation    Intent = "validation"
	IntentGeneral       Intent = "general"
)

// classThreshold is the minimum accumulated score before a non-general
// intent is accepted (spec §4.I: "score >= 2 else general").
const classThreshold = 2

// rule pairs a compiled pattern (weight 3) or plain keyword (weight 1)
// with the intent it signals (spec §4.I "pattern+keyword scoring, +3/+1").
type rule struct {
	intent  Intent
	pattern *regexp.Regexp // nil means this is a keyword rule
	keyword string
}

var rules = []rule{
	{IntentDebugging, regexp.MustCompile(`(?i)\b(why (is|does|did) (it|this|that)|error|exception|traceback|stack trace|not working|bug)\b`), ""},
	{IntentDebugging, nil, "fail"},
	{IntentDebugging, nil, "crash"},

	{IntentConventions, regexp.MustCompile(`(?i)\b(how (do|should) (we|i) (name|format|structure)|style guide|naming convention)\b`), ""},
	{IntentConventions, nil, "convention"},
	{IntentConventions, nil, "lint"},

	{IntentImplementation, regexp.MustCompile(`(?i)\b(how (do|can) i implement|write a|add (a|an|support for)|build a)\b`), ""},
	{IntentImplementation, nil, "implement"},
	{IntentImplementation, nil, "feature"},

	{IntentArchitecture, regexp.MustCompile(`(?i)\b(why (did|do) we (use|choose)|architecture|design decision|tradeoffs?)\b`), ""},
	{IntentArchitecture, nil, "architecture"},
	{IntentArchitecture, nil, "design"},

	{IntentHistory, regexp.MustCompile(`(?i)\b(what did we (try|decide)|have we (tried|seen this)|previously)\b`), ""},
	{IntentHistory, nil, "history"},
	{IntentHistory, nil, "before"},

	{IntentValidation, regexp.MustCompile(`(?i)\b(is (it|this) (ok|safe|correct) to|are we allowed to|is this still valid)\b`), ""},
	{IntentValidation, nil, "valid"},
	{IntentValidation, nil, "allowed"},
}

// classifyOrder is the fixed tie-break order: when two intents score
// equally, the earlier one here wins, so Classify never depends on map
// iteration order.
var classifyOrder = []Intent{
	IntentDebugging, IntentValidation, IntentArchitecture,
	IntentHistory, IntentConventions, IntentImplementation,
}

// Classify scores query against every rule and returns the winning intent,
// or IntentGeneral if nothing clears classThreshold (spec §4.I).
func Classify(query string) Intent {
	lower := strings.ToLower(query)
	scores := map[Intent]int{}

	for _, r := range rules {
		switch {
		case r.pattern != nil && r.pattern.MatchString(query):
			scores[r.intent] += 3
		case r.pattern == nil && strings.Contains(lower, r.keyword):
			scores[r.intent] += 1
		}
	}

	best := IntentGeneral
	bestScore := 0
	for _, i := range classifyOrder {
		if scores[i] > bestScore {
			best, bestScore = i, scores[i]
		}
	}
	if bestScore < classThreshold {
		return IntentGeneral
	}
	return best
}

// RetrievalPlan is what a classified intent resolves to (spec §4.I table).
type RetrievalPlan = search.Plan

// Boosts mirrors search.Boosts so callers in this package don't need to
// import search directly just to build a plan's boost set.
type Boosts = search.Boosts

// planFor is the fixed per-intent table from spec §4.I: which object types
// to prioritise, the minimum confidence tier, the token budget, the
// optional grounded boost, and whether stale memories are still eligible.
func planFor(i Intent) RetrievalPlan {
	switch i {
	case IntentDebugging:
		return RetrievalPlan{
			TypeFilters: []memory.ObjectType{memory.TypeFailedAttempt, memory.TypeKnownFix, memory.TypeConstraint},
			TokenBudget: 1000,
			Boosts:      Boosts{Grounded: 1.5},
		}
	case IntentConventions:
		return RetrievalPlan{
			TypeFilters: []memory.ObjectType{memory.TypeConvention, memory.TypePreference, memory.TypeConstraint},
			TokenBudget: 500,
		}
	case IntentImplementation:
		return RetrievalPlan{
			TypeFilters: []memory.ObjectType{memory.TypeConstraint, memory.TypeDecision, memory.TypeConvention, memory.TypeKnownFix},
			TokenBudget: 800,
			Boosts:      Boosts{Grounded: 1.3},
		}
	case IntentArchitecture:
		return RetrievalPlan{
			TypeFilters: []memory.ObjectType{memory.TypeDecision},
			TokenBudget: 600,
		}
	case IntentHistory:
		return RetrievalPlan{
			TypeFilters:  []memory.ObjectType{memory.TypeFailedAttempt, memory.TypeDecision},
			TokenBudget:  500,
			IncludeStale: true,
		}
	case IntentValidation:
		return RetrievalPlan{
			TypeFilters:   []memory.ObjectType{memory.TypeConstraint, memory.TypeEnvironment},
			MinConfidence: memory.TierGrounded,
			TokenBudget:   300,
			Boosts:        Boosts{Grounded: 2.0},
		}
	default:
		return RetrievalPlan{TokenBudget: 800, Boosts: Boosts{Grounded: 1.2}}
	}
}

// Router classifies and resolves a query to a retrieval plan in one step.
type Router struct{}

func NewRouter() *Router { return &Router{} }

// Route classifies query, resolves its plan, and returns both (spec §4.I).
func (r *Router) Route(query string) (Intent, RetrievalPlan) {
	i := Classify(query)
	return i, planFor(i)
}
