package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// UpsertBatch writes chunk rows including vectors, replacing existing rows
// with the same id on re-ingestion.
func (r *ChunkRepository) UpsertBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content", "article_ref", "keywords", "concepts",
			"category", "jurisdiction", "embedding", "degraded", "updated_at",
		}),
	}).Create(&chunks).Error
}

func (r *ChunkRepository) FindByDocumentID(ctx context.Context, documentID uuid.UUID) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	return chunks, err
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}

// List returns all chunks passing the filters, in document order, each
// carrying its document title for source labelling.
func (r *ChunkRepository) List(ctx context.Context, filters model.SearchFilters) ([]model.Chunk, error) {
	var rows []struct {
		model.Chunk
		Title string `gorm:"column:title"`
	}
	query := r.db.WithContext(ctx).
		Table("knowledge_chunks").
		Select("knowledge_chunks.*, knowledge_documents.title AS title").
		Joins("JOIN knowledge_documents ON knowledge_documents.id = knowledge_chunks.document_id").
		Where("knowledge_chunks.deleted_at IS NULL AND knowledge_documents.deleted_at IS NULL")
	query = applyFilters(query, filters)

	if err := query.Order("document_id ASC, chunk_index ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	chunks := make([]model.Chunk, len(rows))
	for i, row := range rows {
		chunk := row.Chunk
		chunk.DocTitle = row.Title
		chunks[i] = chunk
	}
	return chunks, nil
}

// SimilaritySearch ranks chunks by cosine distance to the query vector using
// the pgvector `<=>` operator, pre-filtered by the metadata columns.
func (r *ChunkRepository) SimilaritySearch(ctx context.Context, queryVec pgvector.Vector, filters model.SearchFilters, topK int, floor float64) ([]model.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	var rows []struct {
		model.Chunk
		Distance float64 `gorm:"column:distance"`
		Title    string  `gorm:"column:title"`
	}

	query := r.db.WithContext(ctx).
		Table("knowledge_chunks").
		Select("knowledge_chunks.*, knowledge_documents.title AS title, embedding <=> ? AS distance", queryVec).
		Joins("JOIN knowledge_documents ON knowledge_documents.id = knowledge_chunks.document_id").
		Where("knowledge_chunks.deleted_at IS NULL AND knowledge_documents.deleted_at IS NULL").
		Where("embedding IS NOT NULL").
		Order("distance ASC").
		Limit(topK)
	query = applyFilters(query, filters)

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]model.SearchResult, 0, len(rows))
	for _, row := range rows {
		// Cosine distance maps to similarity as 1 - distance.
		similarity := 1 - row.Distance
		if similarity < floor {
			continue
		}
		chunk := row.Chunk
		chunk.Tier = model.TierPersistent
		chunk.DocTitle = row.Title
		results = append(results, model.SearchResult{
			Chunk:      &chunk,
			Similarity: similarity,
			Tier:       model.TierPersistent,
		})
	}
	return results, nil
}

func applyFilters(query *gorm.DB, filters model.SearchFilters) *gorm.DB {
	if filters.Category != "" {
		query = query.Where("knowledge_chunks.category = ?", filters.Category)
	}
	if filters.Jurisdiction != "" {
		query = query.Where("knowledge_chunks.jurisdiction = ?", filters.Jurisdiction)
	}
	if filters.Concept != "" {
		tag, _ := json.Marshal([]string{filters.Concept})
		query = query.Where("knowledge_chunks.concepts @> ?::jsonb", string(tag))
	}
	return query
}
