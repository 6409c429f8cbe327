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

// OllamaEngine generates embeddings via a local Ollama server.
type OllamaEngine struct {
	endpoint string
	model    string
	dims     int
	client   *http.Client
}

func NewOllamaEngine(endpoint, model string, dims int) (*OllamaEngine, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "embeddinggemma"
	}
	return &OllamaEngine{
		endpoint: endpoint,
		model:    model,
		dims:     dims,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Ollama.Embed")
	defer timer.Stop()

	var out []float32
	op := func() error {
		body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("embedding: marshal request: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("embedding: build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return fmt.Errorf("embedding: ollama request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("embedding: ollama returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("embedding: ollama returned %d: %s", resp.StatusCode, string(b)))
		}

		var parsed ollamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("embedding: decode ollama response: %w", err))
		}
		out = parsed.Embedding
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("Ollama.Embed failed: %v", err)
		return nil, err
	}
	return out, nil
}

func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *OllamaEngine) Dimensions() int { return e.dims }
func (e *OllamaEngine) Name() string    { return "ollama:" + e.model }
