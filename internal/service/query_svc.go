package service

import (
	"context"
	"errors"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

var ErrEmptyQuestion = errors.New("question must not be empty")

// queryEmbedder embeds retrieval queries, implemented by EmbeddingService.
type queryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) EmbeddingResult
}

// vectorSearcher ranks chunks by vector similarity across both tiers.
type vectorSearcher interface {
	Search(ctx context.Context, queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) ([]model.SearchResult, bool, error)
}

// keywordSearcher is the term-overlap fallback.
type keywordSearcher interface {
	Search(ctx context.Context, query string, filters model.SearchFilters, topK int) []model.SearchResult
}

// answerSynthesizer turns retrieved chunks into a cited answer.
type answerSynthesizer interface {
	Synthesize(ctx context.Context, question string, results []model.SearchResult) (string, []model.Citation)
}

// AnswerResponse is the outcome of one query: the caller always receives an
// answer, with a mode label indicating the grounding quality achieved.
type AnswerResponse struct {
	Answer     string               `json:"answer"`
	Citations  []model.Citation     `json:"citations"`
	Mode       model.RetrievalMode  `json:"mode"`
	Confidence float64              `json:"confidence"`
	Degraded   bool                 `json:"degraded"`
	Results    []model.SearchResult `json:"-"`
}

// QueryService orchestrates retrieval attempts in priority order:
// vector search, then keyword search, then no-context passthrough.
type QueryService struct {
	embedder    queryEmbedder
	vector      vectorSearcher
	keyword     keywordSearcher
	synthesizer answerSynthesizer

	defaultTopK     int
	similarityFloor float64
}

func NewQueryService(embedder queryEmbedder, vector vectorSearcher, keyword keywordSearcher, synthesizer answerSynthesizer, defaultTopK int, similarityFloor float64) *QueryService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &QueryService{
		embedder:        embedder,
		vector:          vector,
		keyword:         keyword,
		synthesizer:     synthesizer,
		defaultTopK:     defaultTopK,
		similarityFloor: similarityFloor,
	}
}

// Answer runs the fallback chain for one question. Zero retrieval results are
// never an error; they advance the chain until the passthrough state
// guarantees a (flagged, ungrounded) answer.
func (s *QueryService) Answer(ctx context.Context, question string, filters model.SearchFilters, topK int, floor float64) (*AnswerResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if floor < 0 {
		floor = s.similarityFloor
	}

	var (
		results  []model.SearchResult
		mode     model.RetrievalMode
		degraded bool
	)

	emb := s.embedder.EmbedQuery(ctx, question)
	degraded = emb.Degraded

	// VectorAttempt. A degraded query embedding cannot be trusted for
	// similarity ranking, so the chain moves straight on.
	if !emb.Degraded {
		vectorResults, searchDegraded, err := s.vector.Search(ctx, emb.Vector, filters, topK, floor)
		degraded = degraded || searchDegraded
		if err == nil {
			results = vectorResults
		}
		if len(results) > 0 {
			mode = model.ModeVector
		}
	}

	// KeywordAttempt.
	if len(results) == 0 {
		results = s.keyword.Search(ctx, question, filters, topK)
		if len(results) > 0 {
			mode = model.ModeKeyword
		}
	}

	// Passthrough.
	if len(results) == 0 {
		mode = model.ModeDirect
	}

	answer, citations := s.synthesizer.Synthesize(ctx, question, results)

	return &AnswerResponse{
		Answer:     answer,
		Citations:  citations,
		Mode:       mode,
		Confidence: topSimilarity(results),
		Degraded:   degraded,
		Results:    results,
	}, nil
}

func topSimilarity(results []model.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Similarity
}
