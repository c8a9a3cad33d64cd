package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

var errTierDown = errors.New("persistent tier unreachable")

// fakeDocRepo is an in-memory stand-in for repository.DocumentRepository.
type fakeDocRepo struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]model.Document
	failing bool
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[uuid.UUID]model.Document)}
}

func (f *fakeDocRepo) Upsert(ctx context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errTierDown
	}
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeDocRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errTierDown
	}
	doc, ok := f.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &doc, nil
}

func (f *fakeDocRepo) List(ctx context.Context, category model.DocumentCategory, jurisdiction string, limit, offset int) ([]model.Document, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, 0, errTierDown
	}
	var out []model.Document
	for _, d := range f.docs {
		if category != "" && d.Category != category {
			continue
		}
		if jurisdiction != "" && d.Jurisdiction != jurisdiction {
			continue
		}
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (f *fakeDocRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errTierDown
	}
	delete(f.docs, id)
	return nil
}

// fakeChunkRepo is an in-memory stand-in for repository.ChunkRepository,
// ranking with the same cosine scan the real tier delegates to pgvector.
type fakeChunkRepo struct {
	mu          sync.Mutex
	chunks      map[uuid.UUID]model.Chunk
	failing     bool
	searchDelay time.Duration
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{chunks: make(map[uuid.UUID]model.Chunk)}
}

func (f *fakeChunkRepo) UpsertBatch(ctx context.Context, chunks []model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errTierDown
	}
	for _, c := range chunks {
		c.Tier = ""
		c.PendingDurable = false
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeChunkRepo) FindByDocumentID(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errTierDown
	}
	var out []model.Chunk
	for _, c := range f.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

func (f *fakeChunkRepo) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errTierDown
	}
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			delete(f.chunks, id)
		}
	}
	return nil
}

func (f *fakeChunkRepo) List(ctx context.Context, filters model.SearchFilters) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errTierDown
	}
	var out []model.Chunk
	for _, c := range f.chunks {
		if filters.Matches(&c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunkRepo) SimilaritySearch(ctx context.Context, queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) ([]model.SearchResult, error) {
	if f.searchDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.searchDelay):
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errTierDown
	}

	var results []model.SearchResult
	for _, c := range f.chunks {
		if c.Embedding == nil || !filters.Matches(&c) {
			continue
		}
		sim := CosineSimilarity(queryVec.Slice(), c.Embedding.Slice())
		if sim < floor {
			continue
		}
		chunk := c
		chunk.Tier = model.TierPersistent
		results = append(results, model.SearchResult{
			Chunk:      &chunk,
			Similarity: sim,
			Tier:       model.TierPersistent,
		})
	}
	results = MergeResults(results, nil, topK)
	return results, nil
}

// fakeEmbedder yields fixed or degraded vectors without a provider.
type fakeEmbedder struct {
	vector   []float32
	degraded bool
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) EmbeddingResult {
	return EmbeddingResult{Vector: pgvector.NewVector(f.vector), Degraded: f.degraded}
}

func (f *fakeEmbedder) EmbedPassages(ctx context.Context, texts []string) []EmbeddingResult {
	out := make([]EmbeddingResult, len(texts))
	for i := range texts {
		out[i] = EmbeddingResult{Vector: pgvector.NewVector(f.vector), Degraded: f.degraded}
	}
	return out
}

// fakeGenerator scripts the generation collaborator.
type fakeGenerator struct {
	answer string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func vec(values ...float32) pgvector.Vector {
	return pgvector.NewVector(values)
}

func chunkWithVec(docID uuid.UUID, index int, content string, v pgvector.Vector) model.Chunk {
	embedding := v
	c := model.Chunk{
		DocumentID: docID,
		ChunkIndex: index,
		Content:    content,
		Category:   model.CategoryUser,
		Embedding:  &embedding,
	}
	c.ID = uuid.New()
	return c
}
