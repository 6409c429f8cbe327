// Package exportimport implements the JSON backup/restore envelope for the
// memory store (spec §6 "Export/Import").
package exportimport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franalgaba/alexandria/internal/memory"
)

// schemaVersion is the export envelope's own version, independent of the
// storage kernel's CurrentSchemaVersion (spec §6: "exports must remain
// readable across storage schema migrations").
const schemaVersion = 1

// Envelope is the on-disk export format (spec §6 "JSON envelope").
type Envelope struct {
	Version    int                   `json:"version"`
	ExportedAt time.Time             `json:"exportedAt"`
	Objects    []memory.MemoryObject `json:"objects"`
}

// Export snapshots every non-retired memory into an Envelope.
func Export(ctx context.Context, store *memory.Store) (*Envelope, error) {
	objects, err := store.List(ctx, memory.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("exportimport: list failed: %w", err)
	}

	var kept []memory.MemoryObject
	for _, m := range objects {
		if m.Status == memory.StatusRetired {
			continue
		}
		kept = append(kept, m)
	}

	return &Envelope{Version: schemaVersion, ExportedAt: time.Now().UTC(), Objects: kept}, nil
}

// Marshal renders env as indented JSON.
func Marshal(env *Envelope) ([]byte, error) {
	b, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("exportimport: marshal failed: %w", err)
	}
	return b, nil
}

// Unmarshal parses an export envelope from raw JSON.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("exportimport: unmarshal failed: %w", err)
	}
	if env.Version > schemaVersion {
		return nil, fmt.Errorf("exportimport: envelope version %d is newer than this build supports (%d)", env.Version, schemaVersion)
	}
	return &env, nil
}

// Result summarises an Import run.
type Result struct {
	Imported int
	Skipped  int
}

// Import re-creates every object in env as a freshly approved, freshly
// re-indexed memory (spec §6: "import auto-approves and re-indexes").
// Imported memories get new ids; content identical to an existing active
// memory is skipped rather than duplicated.
func Import(ctx context.Context, store *memory.Store, env *Envelope) (Result, error) {
	var res Result

	existing, err := store.List(ctx, memory.ListFilter{Status: []memory.Status{memory.StatusActive}})
	if err != nil {
		return res, fmt.Errorf("exportimport: list existing failed: %w", err)
	}
	existingContent := map[string]bool{}
	for _, m := range existing {
		existingContent[m.Content] = true
	}

	var createdIDs []string
	for _, obj := range env.Objects {
		if existingContent[obj.Content] {
			res.Skipped++
			continue
		}
		created, err := store.Create(ctx, memory.CreateInput{
			Content:          obj.Content,
			ObjectType:       obj.ObjectType,
			Scope:            obj.Scope,
			Confidence:       obj.Confidence,
			EvidenceEventIDs: obj.EvidenceEventIDs,
			EvidenceExcerpt:  obj.EvidenceExcerpt,
			ReviewStatus:     memory.ReviewApproved,
			CodeRefs:         obj.CodeRefs,
			Structured:       obj.Structured,
		})
		if err != nil {
			return res, fmt.Errorf("exportimport: create failed for imported object: %w", err)
		}
		createdIDs = append(createdIDs, created.ID)
		res.Imported++
	}

	if _, err := store.BatchReembed(ctx, createdIDs); err != nil {
		return res, fmt.Errorf("exportimport: re-embed failed: %w", err)
	}
	return res, nil
}
