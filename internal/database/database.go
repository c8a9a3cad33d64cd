package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/config"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&model.Document{},
		&model.Chunk{},
	); err != nil {
		return err
	}

	// Approximate nearest neighbor index for cosine ranking.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_embedding " +
			"ON knowledge_chunks USING hnsw (embedding vector_cosine_ops)",
	).Error
}
