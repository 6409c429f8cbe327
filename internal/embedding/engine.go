// Package embedding generates dense vector embeddings for memory content
// and queries. Generation is delegated to a pluggable Engine (spec §4.D:
// "Embedding generation is delegated; the store only guarantees the index
// is consistent with the row after the operation commits"); callers that
// have no engine configured degrade to lexical-only retrieval.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/franalgaba/alexandria/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// Config selects and configures an Engine.
type Config struct {
	Provider       string // "ollama", "genai", or "" to disable
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string
	Dimensions     int
}

// NewEngine builds an Engine from cfg, or (nil, nil) if Provider is empty —
// callers must treat a nil Engine as "embeddings unavailable" and degrade
// to lexical-only search rather than treating it as an error.
func NewEngine(cfg Config) (Engine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	dims := cfg.Dimensions
	if dims == 0 {
		dims = 384
	}

	switch cfg.Provider {
	case "":
		logging.Get(logging.CategoryEmbedding).Info("no embedding provider configured; dense search disabled")
		return nil, nil
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, dims)
	case "genai":
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, dims)
	default:
		return nil, fmt.Errorf("embedding: unsupported provider %q (use \"ollama\" or \"genai\")", cfg.Provider)
	}
}

// CosineSimilarity returns the cosine similarity of a and b, in [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding: dimension mismatch %d != %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// SimilarityResult is one brute-force k-NN hit.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// BruteForceTopK ranks corpus by cosine similarity to query and returns the
// top k. This is the degrade-path used when the sqlite-vec extension is
// unavailable (spec §4.A: "the kernel must degrade to ... brute-force
// cosine comparison in-process").
func BruteForceTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}
	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: sim})
	}
	for i := 0; i < len(results) && i < k; i++ {
		best := i
		for j := i + 1; j < len(results); j++ {
			if results[j].Similarity > results[best].Similarity {
				best = j
			}
		}
		results[i], results[best] = results[best], results[i]
	}
	if len(results) > k {
		results = results[:k]
	}
	return results
}
