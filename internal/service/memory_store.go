package service

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

// MemoryStore is the in-process storage tier. It serves reads immediately
// after ingestion and keeps working when the persistent backend is down, but
// survives only for the process lifetime.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[uuid.UUID]*model.Document
	chunks map[uuid.UUID]*model.Chunk
	byDoc  map[uuid.UUID][]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   make(map[uuid.UUID]*model.Document),
		chunks: make(map[uuid.UUID]*model.Chunk),
		byDoc:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// Put stores a document and its chunks, replacing any previous version.
func (s *MemoryStore) Put(doc *model.Document, chunks []model.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(doc.ID)

	docCopy := *doc
	s.docs[doc.ID] = &docCopy

	ids := make([]uuid.UUID, 0, len(chunks))
	for i := range chunks {
		c := chunks[i]
		c.DocTitle = doc.Title
		s.chunks[c.ID] = &c
		ids = append(ids, c.ID)
	}
	s.byDoc[doc.ID] = ids
}

// MarkDurable clears the pending-durable flag once a chunk reached the
// persistent tier.
func (s *MemoryStore) MarkDurable(documentID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byDoc[documentID] {
		if c, ok := s.chunks[id]; ok {
			c.PendingDurable = false
			c.Tier = model.TierBoth
		}
	}
}

func (s *MemoryStore) GetDocument(id uuid.UUID) (*model.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, false
	}
	docCopy := *doc
	docCopy.ChunkCount = len(s.byDoc[id])
	return &docCopy, true
}

// ChunksByDocument returns the document's chunks in ordinal order.
func (s *MemoryStore) ChunksByDocument(id uuid.UUID) []model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Chunk, 0, len(s.byDoc[id]))
	for _, cid := range s.byDoc[id] {
		if c, ok := s.chunks[cid]; ok {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out
}

// Chunks returns every stored chunk passing the filters.
func (s *MemoryStore) Chunks(filters model.SearchFilters) []model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Chunk
	for _, c := range s.chunks {
		if filters.Matches(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID.String() < out[j].DocumentID.String()
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out
}

// Delete removes a document and all its chunks. Always succeeds.
func (s *MemoryStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *MemoryStore) removeLocked(id uuid.UUID) {
	for _, cid := range s.byDoc[id] {
		delete(s.chunks, cid)
	}
	delete(s.byDoc, id)
	delete(s.docs, id)
}

// PendingDocuments lists documents whose chunks have not reached the
// persistent tier yet.
func (s *MemoryStore) PendingDocuments() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for docID, ids := range s.byDoc {
		for _, cid := range ids {
			if c, ok := s.chunks[cid]; ok && c.PendingDurable {
				out = append(out, docID)
				break
			}
		}
	}
	return out
}

// Search ranks stored chunks by cosine similarity to the query vector with a
// linear scan. The in-process tier is bounded by session lifetime, so the
// scan stays cheap.
func (s *MemoryStore) Search(queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) []model.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []model.SearchResult
	for _, c := range s.chunks {
		if c.Embedding == nil || !filters.Matches(c) {
			continue
		}
		sim := CosineSimilarity(queryVec.Slice(), c.Embedding.Slice())
		if sim < floor {
			continue
		}
		chunk := *c
		results = append(results, model.SearchResult{
			Chunk:      &chunk,
			Similarity: sim,
			Tier:       model.TierMemory,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.DocumentID != results[j].Chunk.DocumentID {
			return results[i].Chunk.DocumentID.String() < results[j].Chunk.DocumentID.String()
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// clamped to [0,1] so scores compare directly with the persistent tier.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
