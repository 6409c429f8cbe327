// Package search implements hybrid lexical+vector retrieval over the
// memory store (spec §4.G): independent FTS5 and vector queries fused by
// reciprocal-rank fusion, then filtered against a retrieval plan.
package search

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/franalgaba/alexandria/internal/embedding"
	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/memory"
	"github.com/franalgaba/alexandria/internal/store"
)

// rrfK is the reciprocal-rank-fusion smoothing constant (spec §4.G: "K=60").
const rrfK = 60.0

// MatchType records which retrieval channel(s) produced a result, exposed
// to callers for debugging and for the pack layer's provenance annotations
// (spec §4.G "matchType").
type MatchType string

const (
	MatchLexical MatchType = "lexical"
	MatchVector  MatchType = "vector"
	MatchHybrid  MatchType = "hybrid"
)

// Result is one fused, scored memory.
type Result struct {
	Memory     memory.MemoryObject
	Score      float64
	MatchType  MatchType
	LexicalRank int // 0 = not ranked by this channel
	VectorRank  int
}

// Options tune a single Search call.
type Options struct {
	Limit int     // max results, default 20
	Alpha float64 // lexical/vector blend hint, default from config.SearchConfig
}

// Engine runs hybrid search against a storage kernel.
type Engine struct {
	db       *store.DB
	embedder embedding.Engine
}

// New constructs a search Engine. embedder may be nil, in which case
// Search degrades to lexical-only (spec §4.A, §4.G).
func New(db *store.DB, embedder embedding.Engine) *Engine {
	return &Engine{db: db, embedder: embedder}
}

// Search runs the fused lexical+vector query and returns ranked results
// (spec §4.G "search(query, opts)").
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	timer := logging.StartTimer(logging.CategorySearch, "Search")
	defer timer.Stop()

	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	var lexicalIDs, vectorIDs []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := e.lexicalSearch(gctx, query, opts.Limit*3)
		if err != nil {
			logging.Get(logging.CategorySearch).Warn("lexical search failed: %v", err)
			return nil // degrade, don't fail the whole search
		}
		lexicalIDs = ids
		return nil
	})
	g.Go(func() error {
		if e.embedder == nil {
			return nil
		}
		ids, err := e.vectorSearch(gctx, query, opts.Limit*3)
		if err != nil {
			logging.Get(logging.CategorySearch).Warn("vector search failed: %v", err)
			return nil
		}
		vectorIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search: fan-out failed: %w", err)
	}

	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = 0.5
	}

	fused := fuse(lexicalIDs, vectorIDs, alpha)
	return e.hydrate(ctx, fused, opts.Limit)
}

// lexicalSearch queries the FTS5 index and maps matched rowids back to
// memory_objects.id (memory_fts is an external-content table keyed by the
// hidden SQLite rowid of memory_objects, not by its TEXT primary key).
func (e *Engine) lexicalSearch(ctx context.Context, query string, limit int) ([]string, error) {
	rows, err := e.db.Conn().QueryContext(ctx, `
		SELECT mo.id
		FROM memory_fts f
		JOIN memory_objects mo ON mo.rowid = f.rowid
		WHERE memory_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// vectorSearch queries memory_vec when available, otherwise falls back to
// brute-force cosine similarity over memory_embeddings (spec §4.A degrade
// path).
func (e *Engine) vectorSearch(ctx context.Context, query string, limit int) ([]string, error) {
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if e.db.HasVectorExtension() {
		return e.vecTableSearch(ctx, queryVec, limit)
	}
	return e.bruteForceSearch(ctx, queryVec, limit)
}

func (e *Engine) vecTableSearch(ctx context.Context, queryVec []float32, limit int) ([]string, error) {
	blob := encodeVector(queryVec)
	rows, err := e.db.Conn().QueryContext(ctx, `
		SELECT memory_id FROM memory_vec
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, blob, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (e *Engine) bruteForceSearch(ctx context.Context, queryVec []float32, limit int) ([]string, error) {
	rows, err := e.db.Conn().QueryContext(ctx, "SELECT memory_id, vector FROM memory_embeddings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	var corpus [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			continue
		}
		ids = append(ids, id)
		corpus = append(corpus, decodeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top := embedding.BruteForceTopK(queryVec, corpus, limit)
	out := make([]string, len(top))
	for i, r := range top {
		out[i] = ids[r.Index]
	}
	return out, nil
}

// fuse combines two ranked id lists with reciprocal-rank fusion, weighting
// each channel by alpha/(1-alpha) (spec §4.G: "score(d) = α·1/(K+rank_FTS+1)
// + (1−α)·1/(K+rank_VEC+1)").
func fuse(lexicalIDs, vectorIDs []string, alpha float64) []Result {
	scores := map[string]float64{}
	lexRank := map[string]int{}
	vecRank := map[string]int{}

	for i, id := range lexicalIDs {
		rank := i + 1
		scores[id] += alpha * (1.0 / (rrfK + float64(rank)))
		lexRank[id] = rank
	}
	for i, id := range vectorIDs {
		rank := i + 1
		scores[id] += (1 - alpha) * (1.0 / (rrfK + float64(rank)))
		vecRank[id] = rank
	}

	out := make([]Result, 0, len(scores))
	for id, score := range scores {
		mt := MatchLexical
		switch {
		case lexRank[id] > 0 && vecRank[id] > 0:
			mt = MatchHybrid
		case vecRank[id] > 0:
			mt = MatchVector
		}
		out = append(out, Result{
			Memory:      memory.MemoryObject{ID: id},
			Score:       score,
			MatchType:   mt,
			LexicalRank: lexRank[id],
			VectorRank:  vecRank[id],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// hydrate fills in each fused Result's full memory object, truncated to
// limit, and records access on every memory actually returned (spec §4.D
// "access accounting": search hits count as accesses).
func (e *Engine) hydrate(ctx context.Context, fused []Result, limit int) ([]Result, error) {
	if len(fused) > limit {
		fused = fused[:limit]
	}
	memStore := memory.NewStore(e.db, nil, 0)

	out := make([]Result, 0, len(fused))
	for _, r := range fused {
		m, err := memStore.Get(ctx, r.Memory.ID)
		if err != nil || m == nil {
			continue
		}
		if m.Status == memory.StatusRetired {
			continue
		}
		r.Memory = *m
		out = append(out, r)
		_ = memStore.RecordAccess(ctx, m.ID)
	}
	return out, nil
}

// ftsQuery escapes a free-text query for FTS5's MATCH operator by quoting
// it as a single phrase, avoiding surprising query-syntax interpretation
// of user-supplied punctuation.
func ftsQuery(q string) string {
	escaped := ""
	for _, r := range q {
		if r == '"' {
			escaped += `""`
			continue
		}
		escaped += string(r)
	}
	return `"` + escaped + `"`
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return out
}
