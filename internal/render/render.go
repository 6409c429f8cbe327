// Package render formats an assembled Pack for output: YAML (the default,
// matching the rest of Alexandria's config and tooling surfaces), JSON, or
// a plain-text form for terminals (spec §6 "Output formats").
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/franalgaba/alexandria/internal/pack"
)

// Format selects the output encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// memoryView is the flattened, render-friendly shape of one packed memory.
type memoryView struct {
	ID         string   `json:"id" yaml:"id"`
	Type       string   `json:"type" yaml:"type"`
	Content    string   `json:"content" yaml:"content"`
	Confidence string   `json:"confidenceTier" yaml:"confidenceTier"`
	MatchType  string   `json:"matchType,omitempty" yaml:"matchType,omitempty"`
	Score      float64  `json:"score,omitempty" yaml:"score,omitempty"`
	Scope      string   `json:"scope,omitempty" yaml:"scope,omitempty"`
	CodeRefs   []string `json:"codeRefs,omitempty" yaml:"codeRefs,omitempty"`
}

// sectionView names and flattens one Section for rendering.
type sectionView struct {
	Name    string       `json:"name" yaml:"name"`
	Memories []memoryView `json:"memories" yaml:"memories"`
}

// revalidationView flattens one RevalidationPrompt.
type revalidationView struct {
	MemoryID string `json:"memoryId" yaml:"memoryId"`
	Reason   string `json:"reason" yaml:"reason"`
	Priority int    `json:"priority" yaml:"priority"`
}

// document is the render-ready, format-agnostic pack shape.
type document struct {
	Level               string             `json:"level" yaml:"level"`
	TokenBudget         int                `json:"tokenBudget" yaml:"tokenBudget"`
	TokensUsed          int                `json:"tokensUsed" yaml:"tokensUsed"`
	Sections            []sectionView      `json:"sections" yaml:"sections"`
	Warnings            []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	NeedsRevalidation   []revalidationView `json:"needsRevalidation,omitempty" yaml:"needsRevalidation,omitempty"`
}

func toDocument(p *pack.Pack) document {
	doc := document{
		Level:       string(p.Level),
		TokenBudget: p.TokenBudget,
		TokensUsed:  p.TokensUsed,
		Warnings:    p.Warnings,
	}
	for _, section := range p.Sections {
		sv := sectionView{Name: section.Name}
		for _, s := range section.Results {
			m := s.Result.Memory
			refs := make([]string, len(m.CodeRefs))
			for i, r := range m.CodeRefs {
				refs[i] = r.Path
			}
			sv.Memories = append(sv.Memories, memoryView{
				ID:         m.ID,
				Type:       string(m.ObjectType),
				Content:    m.Content,
				Confidence: string(m.ConfidenceTier),
				MatchType:  string(s.Result.MatchType),
				Score:      s.Composite,
				Scope:      m.Scope.Path,
				CodeRefs:   refs,
			})
		}
		doc.Sections = append(doc.Sections, sv)
	}
	for _, rp := range p.RevalidationPrompts {
		doc.NeedsRevalidation = append(doc.NeedsRevalidation, revalidationView{
			MemoryID: rp.MemoryID, Reason: rp.Reason, Priority: rp.Priority,
		})
	}
	return doc
}

// Render formats p in the requested format. Unknown formats default to YAML.
func Render(p *pack.Pack, format Format) ([]byte, error) {
	doc := toDocument(p)
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("render: json marshal failed: %w", err)
		}
		return b, nil
	case FormatText:
		return []byte(renderText(doc)), nil
	default:
		b, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("render: yaml marshal failed: %w", err)
		}
		return b, nil
	}
}

func renderText(doc document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "level: %s (budget %d, used %d tokens)\n", doc.Level, doc.TokenBudget, doc.TokensUsed)
	for _, section := range doc.Sections {
		fmt.Fprintf(&b, "\n[%s]\n", section.Name)
		for _, m := range section.Memories {
			fmt.Fprintf(&b, "- (%s/%s) %s\n", m.Type, m.Confidence, m.Content)
		}
	}
	if len(doc.NeedsRevalidation) > 0 {
		b.WriteString("\nneeds revalidation:\n")
		for _, rp := range doc.NeedsRevalidation {
			fmt.Fprintf(&b, "- %s: %s (priority %d)\n", rp.MemoryID, rp.Reason, rp.Priority)
		}
	}
	for _, w := range doc.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", w)
	}
	return b.String()
}
