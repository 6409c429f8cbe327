// Package extractor turns event-log content into candidate memories via
// deterministic pattern matching (spec §4.C). It is pure: the same event
// run twice yields byte-identical candidates (spec §8 invariant 7).
package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/franalgaba/alexandria/internal/memory"
)

// patternTable is the fixed, per-type rule set (spec §4.C): each object
// type gets several independent phrase patterns rather than one combined
// regex, so a sentence tripping more than one of a type's patterns reads
// as stronger evidence for that type.
var patternTable = map[memory.ObjectType][]*regexp.Regexp{
	memory.TypeFailedAttempt: {
		regexp.MustCompile(`(?i)\bthat didn't work\b`),
		regexp.MustCompile(`(?i)\bdoesn't work\b`),
		regexp.MustCompile(`(?i)\bfailed because\b`),
		regexp.MustCompile(`(?i)\btried .* but\b`),
		regexp.MustCompile(`(?i)\bdoes not fix\b`),
		regexp.MustCompile(`(?i)\bstill (fails|failing|broken)\b`),
		regexp.MustCompile(`(?i)\bgave up on\b`),
	},
	memory.TypeKnownFix: {
		regexp.MustCompile(`(?i)\bfixed by\b`),
		regexp.MustCompile(`(?i)\bthe fix (is|was)\b`),
		regexp.MustCompile(`(?i)\bresolved by\b`),
		regexp.MustCompile(`(?i)\bsolved by\b`),
		regexp.MustCompile(`(?i)\bworkaround(?: is)?:\b`),
		regexp.MustCompile(`(?i)\bturns out (the|you) .* (need|needs) to\b`),
	},
	memory.TypeConstraint: {
		regexp.MustCompile(`(?i)\bmust (not|always|never)\b`),
		regexp.MustCompile(`(?i)\brequired to\b`),
		regexp.MustCompile(`(?i)\bis not allowed\b`),
		regexp.MustCompile(`(?i)\bcannot be changed\b`),
		regexp.MustCompile(`(?i)\bhas to be\b`),
		regexp.MustCompile(`(?i)\bnever (commit|delete|modify)\b`),
	},
	memory.TypeDecision: {
		regexp.MustCompile(`(?i)\bwe decided\b`),
		regexp.MustCompile(`(?i)\bwe chose\b`),
		regexp.MustCompile(`(?i)\bwe will use\b`),
		regexp.MustCompile(`(?i)\bwent with\b`),
		regexp.MustCompile(`(?i)\bdecision:`),
		regexp.MustCompile(`(?i)\blet's use\b`),
	},
	memory.TypeConvention: {
		regexp.MustCompile(`(?i)\bconvention is\b`),
		regexp.MustCompile(`(?i)\bwe always\b`),
		regexp.MustCompile(`(?i)\bstyle (is|guide)\b`),
		regexp.MustCompile(`(?i)\bnaming (convention|rule)\b`),
		regexp.MustCompile(`(?i)\bname (it|them|functions|files) (like|as)\b`),
	},
	memory.TypePreference: {
		regexp.MustCompile(`(?i)\bprefer(s|red)? to\b`),
		regexp.MustCompile(`(?i)\bi'd rather\b`),
		regexp.MustCompile(`(?i)\bwould rather\b`),
		regexp.MustCompile(`(?i)\blike to use\b`),
	},
	memory.TypeEnvironment: {
		regexp.MustCompile(`(?i)\brunning on\b`),
		regexp.MustCompile(`(?i)\busing (node|go|python|rust) version\b`),
		regexp.MustCompile(`(?i)\benvironment variable\b`),
		regexp.MustCompile(`(?i)\brequires [\w.-]+ >=\b`),
	},
}

// confidenceTable is spec §4.C's matchCount -> confidence mapping.
var confidenceTable = map[int]memory.Confidence{
	1: memory.ConfidenceLow,
	2: memory.ConfidenceMedium,
	3: memory.ConfidenceHigh,
}

// codeBlockRE strips fenced code blocks before canonicalisation, replacing
// them with a fixed placeholder so two excerpts differing only in an
// embedded snippet still dedup together (spec §4.C "canonical trimming").
var codeBlockRE = regexp.MustCompile("(?s)```.*?```")

// sentenceSplitRE splits on sentence/line boundaries. Good enough for
// deterministic extraction; it is not a full NLP sentence segmenter.
var sentenceSplitRE = regexp.MustCompile(`[.!?\n]+\s*`)

// canonicalCap is the maximum length of a canonicalised excerpt used for
// dedup shingles (spec §4.C: "500-char cap").
const canonicalCap = 500

// shingleLen is how many leading canonicalised characters are compared for
// dedup (spec §4.C: "shingle-based dedup on first 50 normalized chars").
const shingleLen = 50

// Candidate is a proposed memory awaiting review.
type Candidate struct {
	Content         string
	ObjectType      memory.ObjectType
	Confidence      memory.Confidence
	SourceEventID   string
	EvidenceExcerpt string
	Shingle         string
}

// Extract scans content (the text of a single event) and returns
// deterministic candidates, deduplicated against the already-known
// shingles in seen (callers pass the running set across events in a
// session so repeated phrasing doesn't spawn duplicate candidates).
func Extract(eventID, content string, seen map[string]bool) []Candidate {
	if seen == nil {
		seen = map[string]bool{}
	}
	// Code blocks often span multiple lines; strip them before sentence
	// splitting so an embedded newline never fragments a fenced block.
	withoutCode := codeBlockRE.ReplaceAllString(content, " [code block] ")
	sentences := splitSentences(withoutCode)

	var out []Candidate
	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}

		objectType, matchCount, ok := classify(trimmed)
		if !ok {
			continue
		}

		canon := canonicalize(trimmed)
		shingle := shingleOf(canon)
		if seen[shingle] {
			continue
		}
		seen[shingle] = true

		out = append(out, Candidate{
			Content:         canon,
			ObjectType:      objectType,
			Confidence:      confidenceTable[capMatchCount(matchCount)],
			SourceEventID:   eventID,
			EvidenceExcerpt: trimmed,
			Shingle:         shingle,
		})
	}
	return out
}

func splitSentences(content string) []string {
	return sentenceSplitRE.Split(content, -1)
}

// classify counts, per type, how many of that type's patterns match
// sentence, then picks the type with the highest non-zero count, breaking
// ties with the fixed type priority order (spec §4.C "matchCount-driven
// type selection").
func classify(sentence string) (memory.ObjectType, int, bool) {
	counts := matchCounts(sentence)

	var types []memory.ObjectType
	for t, n := range counts {
		if n > 0 {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return "", 0, false
	}

	sort.SliceStable(types, func(i, j int) bool {
		if counts[types[i]] != counts[types[j]] {
			return counts[types[i]] > counts[types[j]]
		}
		return memory.TypePriority[types[i]] > memory.TypePriority[types[j]]
	})

	best := types[0]
	return best, counts[best], true
}

// matchCounts is in a fixed type order (not a map range) so that when
// multiple types land in an equal position further down classify's sort,
// the comparator above — which only ever looks at counts and fixed
// TypePriority — stays the sole source of ordering, never map iteration.
var typeOrder = []memory.ObjectType{
	memory.TypeFailedAttempt, memory.TypeKnownFix, memory.TypeConstraint,
	memory.TypeDecision, memory.TypeConvention, memory.TypePreference,
	memory.TypeEnvironment,
}

func matchCounts(sentence string) map[memory.ObjectType]int {
	counts := make(map[memory.ObjectType]int, len(typeOrder))
	for _, t := range typeOrder {
		n := 0
		for _, re := range patternTable[t] {
			if re.MatchString(sentence) {
				n++
			}
		}
		counts[t] = n
	}
	return counts
}

func capMatchCount(n int) int {
	if n > 3 {
		return 3
	}
	return n
}

// canonicalize collapses whitespace and caps length (spec §4.C "canonical
// trimming"). Code-block stripping already happened before sentence
// splitting; this only normalises spacing left behind by that substitution.
func canonicalize(sentence string) string {
	collapsed := strings.Join(strings.Fields(sentence), " ")
	if len(collapsed) > canonicalCap {
		collapsed = collapsed[:canonicalCap]
	}
	return collapsed
}

func shingleOf(canon string) string {
	lower := strings.ToLower(canon)
	n := shingleLen
	if len(lower) < n {
		n = len(lower)
	}
	sum := sha256.Sum256([]byte(lower[:n]))
	return hex.EncodeToString(sum[:])
}
