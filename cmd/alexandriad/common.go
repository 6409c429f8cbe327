package main

import (
	"time"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
	"github.com/franalgaba/alexandria/internal/config"
	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/store"
)

// timeNowUTC is a thin indirection so CLI commands don't call time.Now
// directly in a dozen places; kept trivial on purpose.
func timeNowUTC() time.Time { return time.Now().UTC() }

// exitCodeFor maps an error to the process exit code scheme (spec §6).
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if alexandriaerr.Is(err, alexandriaerr.KindSchemaIncompatible) {
		return exitConfigError
	}
	var semanticKinds = []alexandriaerr.Kind{
		alexandriaerr.KindInvalidContent,
		alexandriaerr.KindInvalidEnum,
		alexandriaerr.KindNotFound,
		alexandriaerr.KindCycleDetected,
		alexandriaerr.KindVectorUnavailable,
		alexandriaerr.KindRefUnknown,
		alexandriaerr.KindBudgetExceeded,
		alexandriaerr.KindConflictDetected,
	}
	for _, k := range semanticKinds {
		if alexandriaerr.Is(err, k) {
			return exitSemanticError
		}
	}
	return exitFailure
}

// openStore opens the resolved database and wires a memory.Store with the
// configured embedding engine, or a lexical-only store when no embedding
// provider is configured.
func openStore(cfg config.Config) (*store.DB, *memory.Store, error) {
	db, err := store.Open(dbPath, true, cfg.Store.RequireVector)
	if err != nil {
		return nil, nil, err
	}
	db.TryCreateVectorIndex(cfg.Embedding.Dimensions)

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, memory.NewStore(db, engine, cfg.Embedding.Dimensions), nil
}
