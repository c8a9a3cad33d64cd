package service

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

// KeywordSearchService is the approximate fallback behind vector search: a
// term-overlap match over the same filtered chunk set. It produces a result
// whenever any query term overlaps a chunk.
type KeywordSearchService struct {
	store *DualStore
}

func NewKeywordSearchService(store *DualStore) *KeywordSearchService {
	return &KeywordSearchService{store: store}
}

// Search scores chunks by the fraction of distinct query terms they contain.
func (s *KeywordSearchService) Search(ctx context.Context, query string, filters model.SearchFilters, topK int) []model.SearchResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}

	var results []model.SearchResult
	for _, c := range s.store.AllChunks(ctx, filters) {
		score := overlapScore(&c, terms)
		if score <= 0 {
			continue
		}
		chunk := c
		tier := chunk.Tier
		if tier == "" {
			tier = model.TierMemory
		}
		results = append(results, model.SearchResult{
			Chunk:      &chunk,
			Similarity: score,
			Tier:       tier,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID.String() < results[j].Chunk.DocumentID.String()
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func overlapScore(c *model.Chunk, terms []string) float64 {
	content := strings.ToLower(c.Content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(content, term) || containsTag(c.Keywords, term) || containsTag(c.Concepts, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func containsTag(tags model.StringArray, term string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"what": true, "which": true, "does": true, "how": true, "about": true,
	"with": true, "this": true, "that": true, "from": true, "when": true,
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var terms []string
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
