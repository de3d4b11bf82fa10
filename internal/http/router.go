package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/mbaucer/kgraph/internal/http/handlers"
	httpMW "github.com/mbaucer/kgraph/internal/http/middleware"
	"github.com/mbaucer/kgraph/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	CORSOrigins []string

	HealthHandler     *httpH.HealthHandler
	GraphHandler      *httpH.GraphHandler
	SubgraphHandler   *httpH.SubgraphHandler
	ETLHandler        *httpH.ETLHandler
	ExtractionHandler *httpH.ExtractionHandler
	GovernanceHandler *httpH.GovernanceHandler
	SnapshotHandler   *httpH.SnapshotHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.GraphHandler != nil {
			api.GET("/graph/stats", cfg.GraphHandler.Stats)
			api.GET("/graph/search", cfg.GraphHandler.Search)
			api.GET("/graph/entity/:id", cfg.GraphHandler.Entity)
		}

		if cfg.SubgraphHandler != nil {
			api.POST("/subgraph", cfg.SubgraphHandler.KHop)
			api.POST("/subgraph/semantic", cfg.SubgraphHandler.Semantic)
			api.POST("/subgraph/paths", cfg.SubgraphHandler.Paths)
			api.GET("/subgraph/community/:id", cfg.SubgraphHandler.Community)
		}

		if cfg.ETLHandler != nil {
			api.POST("/etl/run", cfg.ETLHandler.RunJob)
		}

		if cfg.ExtractionHandler != nil {
			api.POST("/extraction/triples", cfg.ExtractionHandler.UpsertTriples)
		}

		if cfg.GovernanceHandler != nil {
			api.GET("/governance/quality", cfg.GovernanceHandler.Quality)
		}

		if cfg.SnapshotHandler != nil {
			api.GET("/snapshot", cfg.SnapshotHandler.Export)
		}
	}

	return r
}
