package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mbaucer/kgraph/internal/graph"
	"github.com/mbaucer/kgraph/internal/http/response"
)

type GraphReader interface {
	Stats(ctx context.Context) (*graph.Stats, error)
	Search(ctx context.Context, query string, limit int) ([]graph.SearchHit, error)
	Entity(ctx context.Context, entityID string) (*graph.EntityDetail, error)
}

type GraphHandler struct {
	reader GraphReader
}

func NewGraphHandler(reader GraphReader) *GraphHandler {
	return &GraphHandler{reader: reader}
}

// GET /api/graph/stats
func (h *GraphHandler) Stats(c *gin.Context) {
	stats, err := h.reader.Stats(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "stats_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}

// GET /api/graph/search?q=...&limit=...
func (h *GraphHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_query", errors.New("q parameter is required"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	hits, err := h.reader.Search(c.Request.Context(), query, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"query": query, "results": hits})
}

// GET /api/graph/entity/:id
func (h *GraphHandler) Entity(c *gin.Context) {
	entityID := c.Param("id")
	detail, err := h.reader.Entity(c.Request.Context(), entityID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "entity_lookup_failed", err)
		return
	}
	if detail == nil {
		response.RespondNotFound(c, "entity_not_found", errors.New("entity not found: "+entityID))
		return
	}
	response.RespondOK(c, gin.H{"entity": detail})
}
