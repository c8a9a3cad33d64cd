package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/chunker"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

var (
	ErrEmptyDocument    = errors.New("document content must not be empty")
	ErrDocumentTooLarge = errors.New("document content exceeds the configured size limit")
)

// passageEmbedder embeds corpus texts, implemented by EmbeddingService.
type passageEmbedder interface {
	EmbedPassages(ctx context.Context, texts []string) []EmbeddingResult
}

type IngestRequest struct {
	Title        string                 `json:"title" binding:"required"`
	Content      string                 `json:"content" binding:"required"`
	Category     model.DocumentCategory `json:"category"`
	Jurisdiction string                 `json:"jurisdiction"`
	Metadata     model.JSONMap          `json:"metadata"`
}

type IngestResult struct {
	DocumentID     uuid.UUID `json:"document_id"`
	ChunkCount     int       `json:"chunk_count"`
	DegradedChunks int       `json:"degraded_chunks"`
}

// IngestService runs the one-way ingestion pipeline: chunk, tag, embed, store.
type IngestService struct {
	store    *DualStore
	embedder passageEmbedder

	chunkSize    int
	chunkOverlap int
	maxBytes     int
}

func NewIngestService(store *DualStore, embedder passageEmbedder, chunkSize, chunkOverlap, maxBytes int) *IngestService {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 {
		chunkOverlap = 50
	}
	return &IngestService{
		store:        store,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		maxBytes:     maxBytes,
	}
}

// Ingest accepts a document, splits it into tagged, embedded chunks and
// writes them to both storage tiers. The result is complete only once every
// chunk carries either a real embedding or an explicit degraded marker.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, ErrEmptyDocument
	}
	if s.maxBytes > 0 && len(req.Content) > s.maxBytes {
		return nil, ErrDocumentTooLarge
	}
	if req.Category == "" {
		req.Category = model.CategoryUser
	}

	pieces := chunker.Split(req.Content, s.chunkSize, s.chunkOverlap)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}

	doc := &model.Document{
		Title:        req.Title,
		Content:      req.Content,
		Category:     req.Category,
		Jurisdiction: req.Jurisdiction,
		Metadata:     req.Metadata,
	}
	doc.ID = uuid.New()

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	embeddings := s.embedder.EmbedPassages(ctx, texts)

	degraded := 0
	chunks := make([]model.Chunk, len(pieces))
	for i, p := range pieces {
		keywords, concepts := chunker.Extract(p.Text)
		emb := embeddings[i]
		if emb.Degraded {
			degraded++
		}
		vec := emb.Vector
		chunk := model.Chunk{
			DocumentID:   doc.ID,
			ChunkIndex:   i,
			Content:      p.Text,
			ArticleRef:   p.ArticleRef,
			Keywords:     keywords,
			Concepts:     concepts,
			Category:     doc.Category,
			Jurisdiction: doc.Jurisdiction,
			Embedding:    &vec,
			Degraded:     emb.Degraded,
		}
		chunk.ID = uuid.New()
		chunks[i] = chunk
	}

	if err := s.store.Put(ctx, doc, chunks); err != nil {
		return nil, err
	}
	if degraded > 0 {
		log.Printf("document %s ingested with %d/%d degraded embeddings", doc.ID, degraded, len(chunks))
	}

	return &IngestResult{
		DocumentID:     doc.ID,
		ChunkCount:     len(chunks),
		DegradedChunks: degraded,
	}, nil
}

// Delete removes a document from both tiers, cascading to its chunks.
func (s *IngestService) Delete(ctx context.Context, id uuid.UUID, cascade bool) DeleteResult {
	return s.store.Delete(ctx, id, cascade)
}
