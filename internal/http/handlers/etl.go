package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbaucer/kgraph/internal/etl"
	"github.com/mbaucer/kgraph/internal/http/response"
)

type JobRunner interface {
	RunJob(ctx context.Context, cfg *etl.JobConfig) (*etl.JobSummary, error)
}

// CacheInvalidator drops cached retrieval results for a namespace after
// ingestion changes the data underneath them.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, namespace string) int
}

type ETLHandler struct {
	engine JobRunner
	cache  CacheInvalidator
}

func NewETLHandler(engine JobRunner, cache CacheInvalidator) *ETLHandler {
	return &ETLHandler{engine: engine, cache: cache}
}

type runJobRequest struct {
	ConfigPath string `json:"config_path" binding:"required"`
}

// POST /api/etl/run
//
// Runs the job synchronously. Load jobs are operator-triggered and
// bounded, so the request blocks until the summary is available.
func (h *ETLHandler) RunJob(c *gin.Context) {
	var req runJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	cfg, err := etl.LoadJobConfig(req.ConfigPath)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_job_config", err)
		return
	}
	summary, err := h.engine.RunJob(c.Request.Context(), cfg)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "job_failed", err)
		return
	}
	if h.cache != nil && summary.NodesCreated+summary.RelationshipsCreated > 0 {
		h.cache.Invalidate(c.Request.Context(), "khop")
		h.cache.Invalidate(c.Request.Context(), "community")
	}
	response.RespondOK(c, gin.H{"summary": summary})
}
