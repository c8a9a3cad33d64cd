package model

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type DocumentCategory string

const (
	CategoryLegal    DocumentCategory = "legal"
	CategorySecurity DocumentCategory = "security"
	CategoryUser     DocumentCategory = "user"
)

type Document struct {
	BaseModel
	Title        string           `gorm:"size:500;not null" json:"title"`
	Content      string           `gorm:"type:text;not null" json:"content"`
	Category     DocumentCategory `gorm:"size:50;not null;index" json:"category"`
	Jurisdiction string           `gorm:"size:100;index" json:"jurisdiction,omitempty"`
	Metadata     JSONMap          `gorm:"type:jsonb" json:"metadata"`

	// Stats (computed)
	ChunkCount int `gorm:"-" json:"chunk_count,omitempty"`
}

func (Document) TableName() string {
	return "knowledge_documents"
}

// StorageTier records which tier(s) currently hold a chunk.
type StorageTier string

const (
	TierMemory     StorageTier = "memory"
	TierPersistent StorageTier = "persistent"
	TierBoth       StorageTier = "both"
)

type Chunk struct {
	BaseModel
	DocumentID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"document_id"`
	ChunkIndex   int              `gorm:"not null;default:0" json:"chunk_index"`
	Content      string           `gorm:"type:text;not null" json:"content"`
	ArticleRef   string           `gorm:"size:100" json:"article_ref,omitempty"`
	Keywords     StringArray      `gorm:"type:jsonb" json:"keywords"`
	Concepts     StringArray      `gorm:"type:jsonb" json:"concepts"`
	Category     DocumentCategory `gorm:"size:50;index" json:"category"`
	Jurisdiction string           `gorm:"size:100;index" json:"jurisdiction,omitempty"`
	Embedding    *pgvector.Vector `gorm:"type:vector(1024)" json:"-"`
	Degraded     bool             `gorm:"default:false" json:"degraded"`

	// In-process bookkeeping, never persisted.
	Tier           StorageTier `gorm:"-" json:"tier,omitempty"`
	PendingDurable bool        `gorm:"-" json:"pending_durable,omitempty"`

	// Relations
	Document *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	DocTitle string    `gorm:"-" json:"doc_title,omitempty"`
}

func (Chunk) TableName() string {
	return "knowledge_chunks"
}

// HasConcept reports whether the chunk carries the given concept tag.
func (c *Chunk) HasConcept(tag string) bool {
	for _, t := range c.Concepts {
		if t == tag {
			return true
		}
	}
	return false
}
