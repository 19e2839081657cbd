package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"regdocs/internal/config"
	"regdocs/internal/observability"
)

// RemoteEmbedder calls a hosted embeddings API (OpenAI-compatible request
// shape): one request per batch. Calls are serialized through a
// minimum-delay gate, but NewRemoteEmbedder leaves minDelay at zero, so
// batches are sent back to back without waiting.
type RemoteEmbedder struct {
	cfg       config.EmbeddingConfig
	client    *http.Client
	batchSize int

	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

// NewRemoteEmbedder builds an Embedder that POSTs to cfg.BaseURL.
func NewRemoteEmbedder(cfg config.EmbeddingConfig) *RemoteEmbedder {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	return &RemoteEmbedder{
		cfg:       cfg,
		client:    &http.Client{Timeout: 30 * time.Second},
		batchSize: batch,
	}
}

func (r *RemoteEmbedder) Name() string   { return r.cfg.Model }
func (r *RemoteEmbedder) Dimension() int { return r.cfg.Dimension }

func (r *RemoteEmbedder) Ping(ctx context.Context) error {
	_, err := r.call(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed: remote reachability check failed: %w", err)
	}
	return nil
}

func (r *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	for i := 0; i < len(texts); i += r.batchSize {
		end := i + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := r.rateLimitedCall(ctx, texts[i:end])
		if err != nil {
			return out, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (r *RemoteEmbedder) rateLimitedCall(ctx context.Context, texts []string) ([][]float32, error) {
	r.mu.Lock()
	if !r.lastCall.IsZero() && r.minDelay > 0 {
		if elapsed := time.Since(r.lastCall); elapsed < r.minDelay {
			time.Sleep(r.minDelay - elapsed)
		}
	}
	r.lastCall = time.Now()
	r.mu.Unlock()

	return r.call(ctx, texts)
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (r *RemoteEmbedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: r.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", r.cfg.BaseURL).RawJSON("request", observability.RedactJSON(body)).Msg("embed: remote call failed")
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embed: read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		log.Error().Int("status", resp.StatusCode).Str("url", r.cfg.BaseURL).RawJSON("request", observability.RedactJSON(body)).Msg("embed: remote returned error status")
		return nil, fmt.Errorf("embed: remote returned %s: %s", resp.Status, string(respBody))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("embed: parse response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embed: expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	out := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		out[i] = parsed.Data[i].Embedding
	}
	return out, nil
}
