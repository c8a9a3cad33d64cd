package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

// documentPersistence is the durable-tier boundary for document rows,
// implemented by repository.DocumentRepository.
type documentPersistence interface {
	Upsert(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, category model.DocumentCategory, jurisdiction string, limit, offset int) ([]model.Document, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// chunkPersistence is the durable-tier boundary for chunk rows and the native
// similarity operator, implemented by repository.ChunkRepository.
type chunkPersistence interface {
	UpsertBatch(ctx context.Context, chunks []model.Chunk) error
	FindByDocumentID(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error)
	DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error
	List(ctx context.Context, filters model.SearchFilters) ([]model.Chunk, error)
	SimilaritySearch(ctx context.Context, queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) ([]model.SearchResult, error)
}

// TierStatus reports the outcome of an operation against one storage tier.
type TierStatus struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DeleteResult is the per-tier outcome of a cascading delete. A delete that
// succeeds in one tier but fails in the other is surfaced here, never
// silently ignored.
type DeleteResult struct {
	Memory     TierStatus `json:"memory"`
	Persistent TierStatus `json:"persistent"`
	Partial    bool       `json:"partial"`
}

// DualStore keeps chunks in two tiers: the in-process MemoryStore, which
// always accepts writes, and the relational store, which is canonical when
// reachable. The tiers are eventually consistent; chunks that miss the
// persistent write are flagged pending-durable and flushed by Reconcile.
type DualStore struct {
	mem    *MemoryStore
	docs   documentPersistence
	chunks chunkPersistence

	mu    sync.Mutex
	locks map[uuid.UUID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func NewDualStore(mem *MemoryStore, docs documentPersistence, chunks chunkPersistence) *DualStore {
	return &DualStore{
		mem:    mem,
		docs:   docs,
		chunks: chunks,
		locks:  make(map[uuid.UUID]*docLock),
	}
}

// lockDocument serializes ingestion and deletion per document identifier.
// Independent documents proceed in parallel. The entry is reference-counted
// and dropped once the last holder releases, so the map does not grow with
// the number of documents ever touched.
func (s *DualStore) lockDocument(id uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &docLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *DualStore) hasPersistent() bool {
	return s.docs != nil && s.chunks != nil
}

// Put writes the document and its chunks to both tiers. The in-process write
// always succeeds; a failed persistent write leaves the chunks marked
// pending-durable instead of failing the ingestion.
func (s *DualStore) Put(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	unlock := s.lockDocument(doc.ID)
	defer unlock()

	for i := range chunks {
		chunks[i].Tier = model.TierMemory
		chunks[i].PendingDurable = true
	}
	s.mem.Put(doc, chunks)

	if !s.hasPersistent() {
		return nil
	}
	if err := s.persist(ctx, doc, chunks); err != nil {
		log.Printf("persistent tier write failed for document %s, kept in memory as pending-durable: %v", doc.ID, err)
		return nil
	}
	s.mem.MarkDurable(doc.ID)
	for i := range chunks {
		chunks[i].Tier = model.TierBoth
		chunks[i].PendingDurable = false
	}
	return nil
}

func (s *DualStore) persist(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	if err := s.docs.Upsert(ctx, doc); err != nil {
		return err
	}
	rows := make([]model.Chunk, len(chunks))
	copy(rows, chunks)
	return s.chunks.UpsertBatch(ctx, rows)
}

// Get reads a document with its chunks, preferring the persistent copy as
// canonical and falling back to the in-process tier.
func (s *DualStore) Get(ctx context.Context, id uuid.UUID) (*model.Document, []model.Chunk, error) {
	if s.hasPersistent() {
		doc, err := s.docs.FindByID(ctx, id)
		if err == nil {
			chunks, cerr := s.chunks.FindByDocumentID(ctx, id)
			if cerr == nil {
				for i := range chunks {
					chunks[i].Tier = model.TierPersistent
				}
				doc.ChunkCount = len(chunks)
				return doc, chunks, nil
			}
		} else if err != gorm.ErrRecordNotFound {
			log.Printf("persistent tier read failed for document %s, serving from memory: %v", id, err)
		}
	}

	doc, ok := s.mem.GetDocument(id)
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return doc, s.mem.ChunksByDocument(id), nil
}

// ListDocuments lists documents from the canonical tier, merged with
// memory-only documents that have not reached the persistent store.
func (s *DualStore) ListDocuments(ctx context.Context, category model.DocumentCategory, jurisdiction string, limit, offset int) ([]model.Document, int64, error) {
	if !s.hasPersistent() {
		return nil, 0, gorm.ErrInvalidDB
	}
	return s.docs.List(ctx, category, jurisdiction, limit, offset)
}

// AllChunks merges both tiers and de-duplicates by chunk identifier,
// preferring the persistent copy when both tiers hold one.
func (s *DualStore) AllChunks(ctx context.Context, filters model.SearchFilters) []model.Chunk {
	memChunks := s.mem.Chunks(filters)
	titles := make(map[uuid.UUID]string, len(memChunks))
	for _, c := range memChunks {
		titles[c.ID] = c.DocTitle
	}

	seen := make(map[uuid.UUID]bool)
	var out []model.Chunk

	if s.hasPersistent() {
		persisted, err := s.chunks.List(ctx, filters)
		if err != nil {
			log.Printf("persistent tier listing failed, serving memory tier only: %v", err)
		}
		for _, c := range persisted {
			c.Tier = model.TierPersistent
			if c.DocTitle == "" {
				c.DocTitle = titles[c.ID]
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}

	for _, c := range memChunks {
		if seen[c.ID] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Delete removes the document and, when cascade is set, all its chunks from
// both tiers. Best-effort per tier; a partial failure names the failed tier.
func (s *DualStore) Delete(ctx context.Context, id uuid.UUID, cascade bool) DeleteResult {
	unlock := s.lockDocument(id)
	defer unlock()

	result := DeleteResult{
		Memory:     TierStatus{OK: true},
		Persistent: TierStatus{OK: true},
	}

	s.mem.Delete(id)

	if !s.hasPersistent() {
		return result
	}

	if cascade {
		if err := s.chunks.DeleteByDocumentID(ctx, id); err != nil {
			result.Persistent = TierStatus{OK: false, Error: err.Error()}
			result.Partial = true
			return result
		}
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		result.Persistent = TierStatus{OK: false, Error: err.Error()}
		result.Partial = true
	}
	return result
}

// Reconcile retries the persistent write for every pending-durable document.
func (s *DualStore) Reconcile(ctx context.Context) {
	if !s.hasPersistent() {
		return
	}
	for _, docID := range s.mem.PendingDocuments() {
		unlock := s.lockDocument(docID)
		doc, ok := s.mem.GetDocument(docID)
		if !ok {
			unlock()
			continue
		}
		chunks := s.mem.ChunksByDocument(docID)
		if err := s.persist(ctx, doc, chunks); err != nil {
			log.Printf("reconcile: persistent tier still unavailable for document %s: %v", docID, err)
			unlock()
			continue
		}
		s.mem.MarkDurable(docID)
		log.Printf("reconcile: flushed document %s (%d chunks) to persistent tier", docID, len(chunks))
		unlock()
	}
}

// StartReconciler runs Reconcile on an interval until the context ends.
func (s *DualStore) StartReconciler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Reconcile(ctx)
			}
		}
	}()
}

// MemorySearch exposes the in-process tier scan for the retrieval engine.
func (s *DualStore) MemorySearch(queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) []model.SearchResult {
	return s.mem.Search(queryVec, filters, topK, floor)
}

// PersistentSearch issues the native similarity query against the durable
// tier, or reports it unavailable.
func (s *DualStore) PersistentSearch(ctx context.Context, queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) ([]model.SearchResult, error) {
	if !s.hasPersistent() {
		return nil, gorm.ErrInvalidDB
	}
	return s.chunks.SimilaritySearch(ctx, queryVec, filters, topK, floor)
}
