package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mbaucer/kgraph/internal/etl"
	"github.com/mbaucer/kgraph/internal/extraction"
	"github.com/mbaucer/kgraph/internal/governance"
	"github.com/mbaucer/kgraph/internal/graph"
	kghttp "github.com/mbaucer/kgraph/internal/http"
	"github.com/mbaucer/kgraph/internal/http/handlers"
	"github.com/mbaucer/kgraph/internal/platform/envutil"
	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
	"github.com/mbaucer/kgraph/internal/platform/redisdb"
	"github.com/mbaucer/kgraph/internal/retrieval"
	"github.com/mbaucer/kgraph/internal/snapshot"
)

func main() {
	// Logger
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Graph store
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := neo4jdb.New(neo4jdb.ConfigFromEnv(), log)
	if err != nil {
		log.Error("Could not connect to graph store", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	// Cache (optional)
	var cache *retrieval.Cache
	if redisClient := redisdb.NewFromEnv(log); redisClient != nil {
		ttl := time.Duration(envutil.Int("CACHE_TTL_SECONDS", 3600)) * time.Second
		cache = retrieval.NewCache(redisClient, ttl, log)
	}

	// Services
	retriever := retrieval.New(store, log,
		retrieval.WithCache(cache),
		retrieval.WithFulltextIndex(envutil.String("FULLTEXT_INDEX", "entity_search")),
	)
	reader := graph.NewReader(store, log)
	engine := etl.NewEngine(store, log)
	triples := extraction.NewStore(store, log)
	qa := governance.NewQA(store, log)
	snapshots := snapshot.NewManager(store, log)

	// HTTP
	var origins []string
	if raw := envutil.String("CORS_ORIGINS", ""); raw != "" {
		origins = strings.Split(raw, ",")
	}
	server := kghttp.NewServer(kghttp.RouterConfig{
		Log:         log,
		CORSOrigins: origins,

		HealthHandler:     handlers.NewHealthHandler(store),
		GraphHandler:      handlers.NewGraphHandler(reader),
		SubgraphHandler:   handlers.NewSubgraphHandler(retriever),
		ETLHandler:        handlers.NewETLHandler(engine, cache),
		ExtractionHandler: handlers.NewExtractionHandler(triples, cache),
		GovernanceHandler: handlers.NewGovernanceHandler(qa),
		SnapshotHandler:   handlers.NewSnapshotHandler(snapshots),
	})

	if err := store.Ping(ctx); err != nil {
		log.Warn("Graph store not reachable at startup", "error", err)
	}

	address := ":" + envutil.String("PORT", "8080")
	log.Info("Starting API server", "address", address)
	if err := server.Run(address); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
