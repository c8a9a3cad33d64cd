package service

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

// VectorSearchService ranks candidate chunks across both storage tiers by
// cosine similarity.
type VectorSearchService struct {
	store       *DualStore
	tierTimeout time.Duration
}

func NewVectorSearchService(store *DualStore, tierTimeout time.Duration) *VectorSearchService {
	if tierTimeout <= 0 {
		tierTimeout = 800 * time.Millisecond
	}
	return &VectorSearchService{store: store, tierTimeout: tierTimeout}
}

// Search runs the in-process scan and the persistent-tier similarity query
// concurrently, merges both ranked lists and truncates to topK. Results below
// floor are excluded; zero results is a valid outcome, not an error. A slow
// or unavailable persistent tier yields memory-only results with the degraded
// flag set instead of a hard failure.
func (s *VectorSearchService) Search(ctx context.Context, queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) ([]model.SearchResult, bool, error) {
	if topK <= 0 {
		topK = 5
	}

	var memResults, dbResults []model.SearchResult
	degraded := false

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		memResults = s.store.MemorySearch(queryVec, filters, topK, floor)
		return nil
	})
	g.Go(func() error {
		tctx, cancel := context.WithTimeout(gctx, s.tierTimeout)
		defer cancel()
		results, err := s.store.PersistentSearch(tctx, queryVec, filters, topK, floor)
		if err != nil {
			// Treated as zero results from that tier, not a failure.
			log.Printf("persistent tier search degraded: %v", err)
			degraded = true
			return nil
		}
		dbResults = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, degraded, err
	}

	merged := MergeResults(dbResults, memResults, topK)
	return merged, degraded, nil
}

// MergeResults combines two ranked lists, de-duplicating by chunk identifier
// with the persistent copy winning, ordered by similarity descending with
// ties broken by earlier ordinal index within the same document.
func MergeResults(persistent, memory []model.SearchResult, topK int) []model.SearchResult {
	seen := make(map[uuid.UUID]bool, len(persistent))
	merged := make([]model.SearchResult, 0, len(persistent)+len(memory))
	for _, r := range persistent {
		seen[r.Chunk.ID] = true
		merged = append(merged, r)
	}
	for _, r := range memory {
		if seen[r.Chunk.ID] {
			continue
		}
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		if merged[i].Chunk.DocumentID != merged[j].Chunk.DocumentID {
			return merged[i].Chunk.DocumentID.String() < merged[j].Chunk.DocumentID.String()
		}
		return merged[i].Chunk.ChunkIndex < merged[j].Chunk.ChunkIndex
	})

	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}
