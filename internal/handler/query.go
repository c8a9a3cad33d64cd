package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/service"
)

type QueryHandler struct {
	querySvc     *service.QueryService
	embeddingSvc *service.EmbeddingService
	vectorSvc    *service.VectorSearchService
}

func NewQueryHandler(querySvc *service.QueryService, embeddingSvc *service.EmbeddingService, vectorSvc *service.VectorSearchService) *QueryHandler {
	return &QueryHandler{querySvc: querySvc, embeddingSvc: embeddingSvc, vectorSvc: vectorSvc}
}

type QueryRequest struct {
	Question     string                 `json:"question" binding:"required"`
	Category     model.DocumentCategory `json:"category"`
	Jurisdiction string                 `json:"jurisdiction"`
	Concept      string                 `json:"concept"`
	TopK         int                    `json:"top_k"`
	Floor        *float64               `json:"similarity_floor"`
}

func (r *QueryRequest) filters() model.SearchFilters {
	return model.SearchFilters{
		Category:     r.Category,
		Jurisdiction: r.Jurisdiction,
		Concept:      r.Concept,
	}
}

// Query answers a natural-language question. The response always carries an
// answer; the mode label reports the grounding quality actually achieved.
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	floor := -1.0
	if req.Floor != nil {
		floor = *req.Floor
	}

	resp, err := h.querySvc.Answer(c.Request.Context(), req.Question, req.filters(), req.TopK, floor)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

type RetrieveRequest struct {
	Query        string                 `json:"query" binding:"required"`
	Category     model.DocumentCategory `json:"category"`
	Jurisdiction string                 `json:"jurisdiction"`
	Concept      string                 `json:"concept"`
	TopK         int                    `json:"top_k"`
	Floor        *float64               `json:"similarity_floor"`
}

type RetrieveDocument struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	ArticleRef string  `json:"article_ref,omitempty"`
	Score      float64 `json:"score"`
	Tier       string  `json:"tier"`
	Degraded   bool    `json:"degraded"`
}

type RetrieveResponse struct {
	Documents []RetrieveDocument `json:"documents"`
	Degraded  bool               `json:"degraded"`
}

// Retrieve exposes raw ranked retrieval for agent tool calls, without answer
// synthesis.
func (h *QueryHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emb := h.embeddingSvc.EmbedQuery(c.Request.Context(), req.Query)
	floor := -1.0
	if req.Floor != nil {
		floor = *req.Floor
	}
	if floor < 0 {
		floor = 0
	}

	results, degraded, err := h.vectorSvc.Search(c.Request.Context(), emb.Vector, model.SearchFilters{
		Category:     req.Category,
		Jurisdiction: req.Jurisdiction,
		Concept:      req.Concept,
	}, req.TopK, floor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	docs := make([]RetrieveDocument, len(results))
	for i, r := range results {
		docs[i] = RetrieveDocument{
			ID:         r.Chunk.ID.String(),
			DocumentID: r.Chunk.DocumentID.String(),
			Content:    r.Chunk.Content,
			ArticleRef: r.Chunk.ArticleRef,
			Score:      r.Similarity,
			Tier:       string(r.Tier),
			Degraded:   r.Chunk.Degraded,
		}
	}

	c.JSON(http.StatusOK, RetrieveResponse{
		Documents: docs,
		Degraded:  degraded || emb.Degraded,
	})
}
