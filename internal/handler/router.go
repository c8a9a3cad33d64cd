package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/config"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/repository"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/service"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/pkg/external/generator"
)

// NewStore wires the dual-tier store over the persistent repositories. The
// caller shares one instance between the router and the background reconciler
// so both see the same in-process tier.
func NewStore(db *gorm.DB) *service.DualStore {
	return service.NewDualStore(
		service.NewMemoryStore(),
		repository.NewDocumentRepository(db),
		repository.NewChunkRepository(db),
	)
}

func SetupRouter(cfg *config.Config, store *service.DualStore) *gin.Engine {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Health check endpoints
	r.GET("/health", healthCheck)
	r.GET("/ready", readinessCheck)
	r.GET("/live", livenessCheck)

	// Initialize embedding service
	embeddingSvc := service.NewEmbeddingService(cfg)

	// Root endpoint
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":              "Knowledge Engine",
			"version":              "1.0.0",
			"status":               "running",
			"health_check":         "/health",
			"embedding_dimensions": embeddingSvc.GetDimensions(),
		})
	})

	// Initialize retrieval services
	vectorSvc := service.NewVectorSearchService(store, cfg.TierSearchTimeout())
	keywordSvc := service.NewKeywordSearchService(store)

	// Initialize generation services
	generatorClient := generator.NewClient(cfg.GeneratorAPIKey, cfg.GeneratorBaseURL, cfg.GeneratorModel)
	answerSvc := service.NewAnswerService(generatorClient)
	querySvc := service.NewQueryService(embeddingSvc, vectorSvc, keywordSvc, answerSvc, cfg.DefaultTopK, cfg.SimilarityFloor)

	// Initialize ingestion
	ingestSvc := service.NewIngestService(store, embeddingSvc, cfg.ChunkSize, cfg.ChunkOverlap, cfg.MaxDocumentBytes)

	// Initialize handlers
	documentHandler := NewDocumentHandler(ingestSvc, store)
	queryHandler := NewQueryHandler(querySvc, embeddingSvc, vectorSvc)

	// API v1
	v1 := r.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.POST("", documentHandler.Ingest)
			documents.GET("/:id", documentHandler.Get)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		v1.POST("/query", queryHandler.Query)
	}

	// Raw retrieval endpoint (for AI agent tool calls)
	r.POST("/retrieve", queryHandler.Retrieve)

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "knowledge-engine",
	})
}

func readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

func livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
