package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbaucer/kgraph/internal/governance"
	"github.com/mbaucer/kgraph/internal/http/response"
)

type QualityChecker interface {
	RunAll(ctx context.Context, staleDays, degreeThreshold int) (*governance.Report, error)
}

type GovernanceHandler struct {
	qa QualityChecker
}

func NewGovernanceHandler(qa QualityChecker) *GovernanceHandler {
	return &GovernanceHandler{qa: qa}
}

// GET /api/governance/quality?stale_days=...&degree_threshold=...
func (h *GovernanceHandler) Quality(c *gin.Context) {
	staleDays, _ := strconv.Atoi(c.DefaultQuery("stale_days", "90"))
	degreeThreshold, _ := strconv.Atoi(c.DefaultQuery("degree_threshold", "50"))
	report, err := h.qa.RunAll(c.Request.Context(), staleDays, degreeThreshold)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "quality_check_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}
