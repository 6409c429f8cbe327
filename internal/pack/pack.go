// Package pack implements progressive disclosure: assembling a
// token-budgeted context pack from the memory store at one of three
// escalating detail levels (spec §4.J).
package pack

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/franalgaba/alexandria/internal/intent"
	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/rerank"
	"github.com/franalgaba/alexandria/internal/search"
	"github.com/franalgaba/alexandria/internal/staleness"
)

// Level is a progressive disclosure tier (spec §4.J).
type Level string

const (
	LevelMinimal Level = "minimal"
	LevelTask    Level = "task"
	LevelDeep    Level = "deep"
)

// budgets is the fixed token budget per level (spec §4.J).
var budgets = map[Level]int{
	LevelMinimal: 500,
	LevelTask:    2000,
	LevelDeep:    4000,
}

// sectionBudget is a constraint on how much of the overall budget a
// section may consume (spec §4.J "budget fractions and caps").
type sectionBudget struct {
	fraction float64 // fraction of the level's total budget
	capItems int      // max number of memories, regardless of budget left
}

// constraintsBudgets is keyed by level, not by section: the constraints
// section gets the whole budget at minimal (it's the only thing in the
// pack besides warnings) and a shrinking slice as other sections join in
// at task/deep (spec §4.J "constraints admission").
var constraintsBudgets = map[Level]sectionBudget{
	LevelMinimal: {fraction: 1.0, capItems: 60},
	LevelTask:    {fraction: 0.4, capItems: 25},
	LevelDeep:    {fraction: 0.35, capItems: 35},
}

var sectionBudgets = map[string]sectionBudget{
	"query":   {fraction: 0.4, capItems: 25},
	"related": {fraction: 0.35, capItems: 35},
	"history": {fraction: 0.25, capItems: 20},
}

// maxWarnings caps the warnings section independent of token budget (spec
// §4.J "warnings: up to 5 most-recently-updated stale objects").
const maxWarnings = 5

// Section is one named, ordered slice of a pack (spec §4.J).
type Section struct {
	Name    string
	Results []rerank.Scored
}

// RevalidationPrompt surfaces a memory whose code refs need attention,
// ordered by urgency (spec §4.J "post-pack staleness-driven prompts").
type RevalidationPrompt struct {
	MemoryID string
	Reason   string
	Priority int // higher = more urgent
}

// Pack is the fully assembled progressive-disclosure output.
type Pack struct {
	Level               Level
	TokenBudget         int
	TokensUsed          int
	Sections            []Section
	Warnings            []string
	RevalidationPrompts []RevalidationPrompt
}

// Assembler builds Packs from the memory store, search engine, and
// staleness checker.
type Assembler struct {
	store   *memory.Store
	search  *search.Engine
	checker *staleness.Checker
}

// NewAssembler constructs an Assembler.
func NewAssembler(store *memory.Store, searchEngine *search.Engine, checker *staleness.Checker) *Assembler {
	return &Assembler{store: store, search: searchEngine, checker: checker}
}

// includesSection says, for each level, whether a section is populated
// (spec §4.J "exact inclusion-flag table"):
//
//	minimal: constraints + warnings only
//	task:    constraints + warnings + query
//	deep:    constraints + warnings + query + related + history
//
// The "hot" section (caller-supplied ids) is independent of level gating
// and is never checked against this table.
func includesSection(level Level, section string) bool {
	switch section {
	case "constraints", "warnings":
		return true
	case "query":
		return level == LevelTask || level == LevelDeep
	case "related", "history":
		return level == LevelDeep
	default:
		return false
	}
}

// Assemble builds a Pack at level for query in a project whose keywords
// gate relevance filtering (spec §9 supplemented "richer ProgressiveRetriever
// variant": project-keyword relevance filtering narrows the constraints/
// related sections to memories whose scope or content plausibly applies to
// the current project, rather than packing every global memory by
// default). hotIDs are caller-supplied memory ids that are always packed
// as a "hot" section regardless of level (spec §4.J step 3).
func (a *Assembler) Assemble(ctx context.Context, level Level, query string, projectKeywords []string, hotIDs []string, now time.Time) (*Pack, error) {
	budget := budgets[level]
	p := &Pack{Level: level, TokenBudget: budget}

	if len(hotIDs) > 0 {
		hot, err := a.hotMemories(ctx, hotIDs)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("hot section degraded: %v", err))
		} else {
			p.addSection("hot", hot, budget, sectionBudget{fraction: 1.0, capItems: len(hotIDs)})
		}
	}

	constraints, err := a.constraintMemories(ctx, level, projectKeywords, now)
	if err != nil {
		return nil, fmt.Errorf("pack: constraints section failed: %w", err)
	}
	p.addSection("constraints", constraints, budget, constraintsBudgets[level])

	warnings, err := a.warningMemories(ctx)
	if err != nil {
		p.Warnings = append(p.Warnings, fmt.Sprintf("warnings section degraded: %v", err))
	} else {
		p.addSection("warnings", warnings, budget, sectionBudget{fraction: 1.0, capItems: maxWarnings})
	}

	if includesSection(level, "query") && query != "" {
		router := intent.NewRouter()
		_, plan := router.Route(query)
		plan.Limit = sectionBudgets["query"].capItems
		results, err := a.search.SearchWithPlan(ctx, query, plan, "", now)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("query section degraded: %v", err))
		} else {
			scored := rerank.Rerank(results, rerank.DefaultWeights, now)
			p.addSection("query", scored, budget, sectionBudgets["query"])
		}
	} else if includesSection(level, "query") {
		recent, err := a.store.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusActive}, Limit: sectionBudgets["query"].capItems})
		if err == nil {
			p.addSection("query", wrapAsScored(recent), budget, sectionBudgets["query"])
		}
	}

	if includesSection(level, "related") {
		related, err := a.relatedMemories(ctx, projectKeywords)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("related section degraded: %v", err))
		} else {
			p.addSection("related", related, budget, sectionBudgets["related"])
		}
	}

	if includesSection(level, "history") {
		history, err := a.historyMemories(ctx, projectKeywords)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("history section degraded: %v", err))
		} else {
			p.addSection("history", history, budget, sectionBudgets["history"])
		}
	}

	for _, section := range p.Sections {
		for _, s := range section.Results {
			_ = a.store.RecordAccess(ctx, s.Result.Memory.ID)
		}
	}

	p.RevalidationPrompts = a.buildRevalidationPrompts(ctx, p)
	return p, nil
}

// addSection admits scored under b and appends the result as a named
// section. An empty candidate list adds no section.
func (p *Pack) addSection(name string, scored []rerank.Scored, totalBudget int, b sectionBudget) {
	if len(scored) == 0 {
		return
	}
	maxTokens := int(float64(totalBudget) * b.fraction)
	included := admit(scored, maxTokens, b.capItems)
	p.Sections = append(p.Sections, Section{Name: name, Results: included})
	for _, s := range included {
		p.TokensUsed += estimateMemoryTokens(s.Result.Memory)
	}
	if len(included) < len(scored) {
		p.Warnings = append(p.Warnings, fmt.Sprintf("section %q truncated: %d of %d memories included under budget", name, len(included), len(scored)))
	}
}

// admit greedily packs scored (already sorted best-first) under a token
// budget and an item-count cap (spec §4.J "greedy packing").
func admit(scored []rerank.Scored, tokenBudget, itemCap int) []rerank.Scored {
	var out []rerank.Scored
	used := 0
	for _, s := range scored {
		if len(out) >= itemCap {
			break
		}
		cost := estimateMemoryTokens(s.Result.Memory)
		if used+cost > tokenBudget && len(out) > 0 {
			continue
		}
		out = append(out, s)
		used += cost
	}
	return out
}

// estimateMemoryTokens is the same ceil(chars/4) heuristic used by the
// event log (spec §4.B/§4.J share one token-estimation convention).
func estimateMemoryTokens(m memory.MemoryObject) int {
	n := len(m.Content)
	if n == 0 {
		return 1
	}
	return (n + 3) / 4
}

func wrapAsScored(memories []memory.MemoryObject) []rerank.Scored {
	out := make([]rerank.Scored, len(memories))
	for i, m := range memories {
		out[i] = rerank.Scored{Result: search.Result{Memory: m}, Composite: 0}
	}
	return out
}

// hotMemories fetches caller-supplied ids directly, preserving the order
// the caller asked for (spec §4.J step 3: "priority (hot) memories ...
// independent of level gating").
func (a *Assembler) hotMemories(ctx context.Context, ids []string) ([]rerank.Scored, error) {
	var out []memory.MemoryObject
	for _, id := range ids {
		m, err := a.store.Get(ctx, id)
		if err != nil || m == nil {
			continue
		}
		out = append(out, *m)
	}
	return wrapAsScored(out), nil
}

// trailingColon matches content that ends with a colon, which marks a
// truncated or header-only fragment that reads badly standalone in a pack
// (spec §4.J "reject trailing ':'").
var trailingColon = regexp.MustCompile(`:\s*$`)

// constraintMemories admits active, approved constraint memories,
// newest-first, filtered by project relevance and deduplicated by
// normalized keyword bag (spec §4.J "constraints admission").
func (a *Assembler) constraintMemories(ctx context.Context, level Level, projectKeywords []string, now time.Time) ([]rerank.Scored, error) {
	all, err := a.store.List(ctx, memory.ListFilter{
		ObjectType: memory.TypeConstraint,
		Status:     []memory.Status{memory.StatusActive},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	seenBags := map[string]bool{}
	var admitted []memory.MemoryObject
	for _, m := range all {
		if m.ReviewStatus != memory.ReviewApproved {
			continue
		}
		if trailingColon.MatchString(strings.TrimSpace(m.Content)) {
			continue
		}
		if len(projectKeywords) > 0 && !matchesKeywords(m, projectKeywords) {
			continue
		}
		bag := keywordBag(m.Content)
		if bag != "" && seenBags[bag] {
			continue
		}
		if bag != "" {
			seenBags[bag] = true
		}
		admitted = append(admitted, m)
	}

	_ = now // constraints admission is ordering-driven, not recency-scored
	return wrapAsScored(admitted), nil
}

// stopwords are excluded from a keyword bag because they carry no
// discriminating content for duplicate detection.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "is": true, "are": true,
	"it": true, "this": true, "that": true, "with": true, "be": true, "we": true,
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// keywordBag normalizes content into a sorted, deduplicated, stopword-
// filtered bag of words for duplicate detection (spec §4.J "dedup by
// normalized keyword bag").
func keywordBag(content string) string {
	words := wordPattern.FindAllString(strings.ToLower(content), -1)
	seen := map[string]bool{}
	var kept []string
	for _, w := range words {
		if len(w) <= 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		kept = append(kept, w)
	}
	sort.Strings(kept)
	return strings.Join(kept, "|")
}

// warningMemories returns the most-recently-updated stale memories, any
// type, capped at maxWarnings (spec §4.J "warnings section").
func (a *Assembler) warningMemories(ctx context.Context) ([]rerank.Scored, error) {
	stale, err := a.store.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusStale}})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stale, func(i, j int) bool { return stale[i].UpdatedAt.After(stale[j].UpdatedAt) })
	if len(stale) > maxWarnings {
		stale = stale[:maxWarnings]
	}
	return wrapAsScored(stale), nil
}

// relatedMemories returns deep-only neighbours: active, non-constraint
// memories matching project keywords (spec §4.J "related section").
func (a *Assembler) relatedMemories(ctx context.Context, projectKeywords []string) ([]rerank.Scored, error) {
	all, err := a.store.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusActive}, Limit: 200})
	if err != nil {
		return nil, err
	}

	var related []memory.MemoryObject
	for _, m := range all {
		if m.ObjectType == memory.TypeConstraint {
			continue // already covered by the constraints section
		}
		if len(projectKeywords) > 0 && !matchesKeywords(m, projectKeywords) {
			continue
		}
		related = append(related, m)
	}
	sort.SliceStable(related, func(i, j int) bool {
		if memory.TypePriority[related[i].ObjectType] != memory.TypePriority[related[j].ObjectType] {
			return memory.TypePriority[related[i].ObjectType] > memory.TypePriority[related[j].ObjectType]
		}
		return related[i].Strength > related[j].Strength
	})
	return wrapAsScored(related), nil
}

// historyMemories returns deep-only history: failed attempts and
// superseded memories, which explain what was tried and abandoned rather
// than what currently applies (spec §4.J "history section").
func (a *Assembler) historyMemories(ctx context.Context, projectKeywords []string) ([]rerank.Scored, error) {
	all, err := a.store.List(ctx, memory.ListFilter{Limit: 200})
	if err != nil {
		return nil, err
	}

	var history []memory.MemoryObject
	for _, m := range all {
		if m.ObjectType != memory.TypeFailedAttempt && m.Status != memory.StatusSuperseded {
			continue
		}
		if len(projectKeywords) > 0 && !matchesKeywords(m, projectKeywords) {
			continue
		}
		history = append(history, m)
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].CreatedAt.After(history[j].CreatedAt) })
	return wrapAsScored(history), nil
}

func matchesKeywords(m memory.MemoryObject, keywords []string) bool {
	haystack := strings.ToLower(m.Content + " " + m.Scope.Path)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// revalidationPriority orders urgency: retire-candidates first, then
// verify-changed, then verify-never-verified, with a bump for
// constraint/decision memories (spec §4.J "priority ordering").
func revalidationPriority(m memory.MemoryObject, result staleness.MemoryResult) int {
	base := 0
	switch result.Status {
	case staleness.RefStale:
		base = 20
	case staleness.RefNeedsReview:
		base = 10
	default:
		if m.LastVerifiedAt != nil {
			return 0
		}
		base = 1 // never verified
	}
	if m.ObjectType == memory.TypeConstraint || m.ObjectType == memory.TypeDecision {
		base += 5
	}
	return base
}

func (a *Assembler) buildRevalidationPrompts(ctx context.Context, p *Pack) []RevalidationPrompt {
	seen := map[string]bool{}
	var prompts []RevalidationPrompt
	for _, section := range p.Sections {
		for _, s := range section.Results {
			m := s.Result.Memory
			if seen[m.ID] || len(m.CodeRefs) == 0 {
				continue
			}
			seen[m.ID] = true
			result := a.checker.CheckMemory(ctx, m)
			priority := revalidationPriority(m, result)
			if priority == 0 {
				continue
			}
			reason := "code reference needs review"
			if result.Status == staleness.RefStale {
				reason = "code reference changed or disappeared"
			}
			prompts = append(prompts, RevalidationPrompt{MemoryID: m.ID, Reason: reason, Priority: priority})
		}
	}
	sort.SliceStable(prompts, func(i, j int) bool { return prompts[i].Priority > prompts[j].Priority })
	return prompts
}
