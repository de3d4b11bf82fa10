package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbaucer/kgraph/internal/http/response"
	"github.com/mbaucer/kgraph/internal/retrieval"
)

type SubgraphRetriever interface {
	KHopSubgraph(ctx context.Context, seeds []string, k, maxNodes int) (*retrieval.Subgraph, error)
	SemanticSubgraph(ctx context.Context, query string, topK, expandHops int) (*retrieval.Subgraph, error)
	PathRetrieval(ctx context.Context, entityA, entityB string, maxPaths int) (*retrieval.PathResult, error)
	CommunitySubgraph(ctx context.Context, communityID string, depth int) (*retrieval.Subgraph, error)
}

type SubgraphHandler struct {
	retriever SubgraphRetriever
}

func NewSubgraphHandler(retriever SubgraphRetriever) *SubgraphHandler {
	return &SubgraphHandler{retriever: retriever}
}

type khopRequest struct {
	Seeds    []string `json:"seeds" binding:"required"`
	K        int      `json:"k"`
	MaxNodes int      `json:"max_nodes"`
}

// POST /api/subgraph
func (h *SubgraphHandler) KHop(c *gin.Context) {
	var req khopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.K == 0 {
		req.K = 2
	}
	if req.MaxNodes == 0 {
		req.MaxNodes = 100
	}
	subgraph, err := h.retriever.KHopSubgraph(c.Request.Context(), req.Seeds, req.K, req.MaxNodes)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "subgraph_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"subgraph": subgraph})
}

type semanticRequest struct {
	Query      string `json:"query" binding:"required"`
	TopK       int    `json:"top_k"`
	ExpandHops int    `json:"expand_hops"`
}

// POST /api/subgraph/semantic
func (h *SubgraphHandler) Semantic(c *gin.Context) {
	var req semanticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.TopK == 0 {
		req.TopK = 5
	}
	if req.ExpandHops == 0 {
		req.ExpandHops = 1
	}
	subgraph, err := h.retriever.SemanticSubgraph(c.Request.Context(), req.Query, req.TopK, req.ExpandHops)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "semantic_subgraph_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"subgraph": subgraph})
}

type pathsRequest struct {
	From     string `json:"from" binding:"required"`
	To       string `json:"to" binding:"required"`
	MaxPaths int    `json:"max_paths"`
}

// POST /api/subgraph/paths
func (h *SubgraphHandler) Paths(c *gin.Context) {
	var req pathsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.MaxPaths == 0 {
		req.MaxPaths = 3
	}
	result, err := h.retriever.PathRetrieval(c.Request.Context(), req.From, req.To, req.MaxPaths)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "path_retrieval_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"paths": result})
}

// GET /api/subgraph/community/:id?depth=...
func (h *SubgraphHandler) Community(c *gin.Context) {
	communityID := c.Param("id")
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "1"))
	subgraph, err := h.retriever.CommunitySubgraph(c.Request.Context(), communityID, depth)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "community_subgraph_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"subgraph": subgraph})
}
