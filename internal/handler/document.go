package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/model"
	"github.com/AngelaHan1129/qinguoqinchen-sub000/internal/service"
)

type DocumentHandler struct {
	ingestSvc *service.IngestService
	store     *service.DualStore
}

func NewDocumentHandler(ingestSvc *service.IngestService, store *service.DualStore) *DocumentHandler {
	return &DocumentHandler{ingestSvc: ingestSvc, store: store}
}

// Ingest accepts a document and returns its identifier plus the count of
// chunks created.
func (h *DocumentHandler) Ingest(c *gin.Context) {
	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.ingestSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyDocument) || errors.Is(err, service.ErrDocumentTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	doc, chunks, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc.ChunkCount = len(chunks)
	c.JSON(http.StatusOK, gin.H{
		"document": doc,
		"chunks":   chunks,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	category := model.DocumentCategory(c.Query("category"))
	jurisdiction := c.Query("jurisdiction")

	docs, total, err := h.store.ListDocuments(c.Request.Context(), category, jurisdiction, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
	})
}

// Delete cascades across both tiers; a partial failure names the failed tier
// so the caller can retry against it.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}
	cascade := c.DefaultQuery("cascade", "true") != "false"

	result := h.ingestSvc.Delete(c.Request.Context(), id, cascade)
	status := http.StatusOK
	if result.Partial {
		status = http.StatusMultiStatus
	}
	c.JSON(status, result)
}
