package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/config"
)

// Instruction prefixes distinguish corpus text from query text. Embedding
// models are trained with different prefixes for the two sides, and mixing
// them degrades similarity quality.
const (
	PrefixPassage = "passage: "
	PrefixQuery   = "query: "
)

// EmbeddingResult carries one vector per input text, order-preserving.
// Degraded marks vectors produced by the hash-seeded fallback generator.
type EmbeddingResult struct {
	Vector   pgvector.Vector
	Degraded bool
}

// EmbeddingService handles embedding generation against an OpenAI-compatible
// provider, with batching, bounded retry and a deterministic local fallback.
type EmbeddingService struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	batchSize  int
	workers    int
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

// NewEmbeddingService creates a new embedding service
func NewEmbeddingService(cfg *config.Config) *EmbeddingService {
	batchSize := cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	workers := cfg.EmbeddingWorkers
	if workers <= 0 {
		workers = 4
	}
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &EmbeddingService{
		apiKey:     cfg.EmbeddingAPIKey,
		baseURL:    cfg.EmbeddingBaseURL,
		model:      cfg.EmbeddingModel,
		dimensions: dimensions,
		batchSize:  batchSize,
		workers:    workers,
		maxRetries: cfg.EmbeddingMaxRetries,
		backoff:    500 * time.Millisecond,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// EmbeddingRequest represents the OpenAI embedding API request
type EmbeddingRequest struct {
	Input          interface{} `json:"input"`
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
	Dimensions     int         `json:"dimensions,omitempty"`
}

// EmbeddingResponse represents the OpenAI embedding API response
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedPassages embeds corpus texts at ingestion time.
func (s *EmbeddingService) EmbedPassages(ctx context.Context, texts []string) []EmbeddingResult {
	return s.Embed(ctx, texts, PrefixPassage)
}

// EmbedQuery embeds a single retrieval query.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) EmbeddingResult {
	results := s.Embed(ctx, []string{text}, PrefixQuery)
	return results[0]
}

// Embed converts texts to vectors, one per input, order-preserving. Provider
// calls are batched and dispatched with bounded concurrency; a batch that
// still fails after retries falls back to deterministic pseudo-random vectors
// flagged as degraded. Callers always receive a vector per text.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string, prefix string) []EmbeddingResult {
	results := make([]EmbeddingResult, len(texts))
	if len(texts) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(s.workers)

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			batch := texts[start:end]
			prefixed := make([]string, len(batch))
			for i, t := range batch {
				prefixed[i] = prefix + t
			}

			vectors, err := s.callWithRetry(ctx, prefixed)
			if err != nil {
				log.Printf("embedding provider unavailable, degrading %d texts: %v", len(batch), err)
				for i, t := range batch {
					results[start+i] = EmbeddingResult{Vector: s.fallbackVector(t), Degraded: true}
				}
				return nil
			}
			for i := range batch {
				results[start+i] = EmbeddingResult{Vector: vectors[i]}
			}
			return nil
		})
	}
	g.Wait()

	return results
}

func (s *EmbeddingService) callWithRetry(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff << (attempt - 1)):
			}
		}
		vectors, err := s.call(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (s *EmbeddingService) call(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	reqBody := EmbeddingRequest{
		Input:      texts,
		Model:      s.model,
		Dimensions: s.dimensions,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(embResp.Data), len(texts))
	}

	vectors := make([]pgvector.Vector, len(embResp.Data))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("provider returned out-of-range index %d", data.Index)
		}
		if len(data.Embedding) != s.dimensions {
			return nil, fmt.Errorf("provider returned %d-dimensional embedding, expected %d", len(data.Embedding), s.dimensions)
		}
		vectors[data.Index] = pgvector.NewVector(data.Embedding)
	}

	return vectors, nil
}

// fallbackVector produces a unit vector seeded by a hash of the input text,
// so repeated degradation of the same text yields the same vector.
func (s *EmbeddingService) fallbackVector(text string) pgvector.Vector {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	values := make([]float32, s.dimensions)
	var norm float64
	for i := range values {
		v := rng.Float64()*2 - 1
		values[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range values {
			values[i] = float32(float64(values[i]) / norm)
		}
	}
	return pgvector.NewVector(values)
}

// GetDimensions returns the embedding dimensions
func (s *EmbeddingService) GetDimensions() int {
	return s.dimensions
}
