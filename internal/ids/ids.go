// Package ids generates the opaque short-string identifiers used throughout
// Alexandria (spec §3: "all identifiers are opaque short strings (>=8 hex
// chars) generated at creation") and resolves unique-prefix lookups.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh 32-hex-character opaque id (a UUIDv4 with dashes
// stripped), satisfying the >=8 hex char requirement with room for prefix
// lookups to stay unambiguous in practice.
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MinPrefixLen is the minimum accepted prefix length for Resolve (spec §4.D:
// "by unique prefix >= 8 hex chars").
const MinPrefixLen = 8

// ResolveError distinguishes the two failure modes of prefix resolution.
type ResolveError int

const (
	// ResolveNotFound means zero ids matched the prefix.
	ResolveNotFound ResolveError = iota
	// ResolveAmbiguous means more than one id matched the prefix.
	ResolveAmbiguous
	// ResolveTooShort means the prefix was shorter than MinPrefixLen and
	// was not itself a full id.
	ResolveTooShort
)

// Resolve finds the single id in all whose prefix matches (or which equals)
// the given query. It returns the matched id, or ok=false with why set.
func Resolve(query string, all []string) (id string, ok bool, why ResolveError) {
	for _, candidate := range all {
		if candidate == query {
			return candidate, true, 0
		}
	}
	if len(query) < MinPrefixLen {
		return "", false, ResolveTooShort
	}
	var matches []string
	for _, candidate := range all {
		if strings.HasPrefix(candidate, query) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 0:
		return "", false, ResolveNotFound
	case 1:
		return matches[0], true, 0
	default:
		return "", false, ResolveAmbiguous
	}
}
