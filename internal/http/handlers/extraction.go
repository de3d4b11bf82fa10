package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbaucer/kgraph/internal/extraction"
	"github.com/mbaucer/kgraph/internal/http/response"
)

type TripleStore interface {
	UpsertTriples(ctx context.Context, triples []extraction.Triple) (int64, error)
}

type ExtractionHandler struct {
	store TripleStore
	cache CacheInvalidator
}

func NewExtractionHandler(store TripleStore, cache CacheInvalidator) *ExtractionHandler {
	return &ExtractionHandler{store: store, cache: cache}
}

type upsertTriplesRequest struct {
	Triples []extraction.Triple `json:"triples" binding:"required"`
}

// POST /api/extraction/triples
func (h *ExtractionHandler) UpsertTriples(c *gin.Context) {
	var req upsertTriplesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	upserts, err := h.store.UpsertTriples(c.Request.Context(), req.Triples)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "triple_upsert_failed", err)
		return
	}
	if h.cache != nil && upserts > 0 {
		h.cache.Invalidate(c.Request.Context(), "khop")
		h.cache.Invalidate(c.Request.Context(), "community")
	}
	response.RespondOK(c, gin.H{"upserts": upserts})
}
