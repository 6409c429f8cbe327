package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/franalgaba/alexandria/internal/logging"
)

// GenAIEngine generates embeddings via Google's Generative Language REST
// API. It speaks the embeddings endpoint directly over net/http rather than
// pulling in the full google.golang.org/genai SDK, since only a single
// request/response shape is needed (see DESIGN.md).
type GenAIEngine struct {
	apiKey string
	model  string
	dims   int
	client *http.Client
}

func NewGenAIEngine(apiKey, model string, dims int) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: genai provider requires an API key")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GenAIEngine{
		apiKey: apiKey,
		model:  model,
		dims:   dims,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type genaiEmbedRequest struct {
	Model   string            `json:"model"`
	Content genaiEmbedContent `json:"content"`
}

type genaiEmbedContent struct {
	Parts []genaiEmbedPart `json:"parts"`
}

type genaiEmbedPart struct {
	Text string `json:"text"`
}

type genaiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "GenAI.Embed")
	defer timer.Stop()

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent?key=%s", e.model, e.apiKey)

	var out []float32
	op := func() error {
		body, err := json.Marshal(genaiEmbedRequest{
			Model:   "models/" + e.model,
			Content: genaiEmbedContent{Parts: []genaiEmbedPart{{Text: text}}},
		})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("embedding: marshal request: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("embedding: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("embedding: genai request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("embedding: genai returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("embedding: genai returned %d: %s", resp.StatusCode, string(b)))
		}

		var parsed genaiEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("embedding: decode genai response: %w", err))
		}
		out = parsed.Embedding.Values
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("GenAI.Embed failed: %v", err)
		return nil, err
	}
	return out, nil
}

func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *GenAIEngine) Dimensions() int { return e.dims }
func (e *GenAIEngine) Name() string    { return "genai:" + e.model }
