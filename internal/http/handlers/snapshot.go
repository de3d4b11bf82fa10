package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbaucer/kgraph/internal/http/response"
	"github.com/mbaucer/kgraph/internal/snapshot"
)

type Exporter interface {
	Export(ctx context.Context) (*snapshot.Snapshot, error)
}

type SnapshotHandler struct {
	manager Exporter
}

func NewSnapshotHandler(manager Exporter) *SnapshotHandler {
	return &SnapshotHandler{manager: manager}
}

// GET /api/snapshot
func (h *SnapshotHandler) Export(c *gin.Context) {
	snap, err := h.manager.Export(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "snapshot_failed", err)
		return
	}
	response.RespondOK(c, snap)
}
