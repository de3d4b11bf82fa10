package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbaucer/kgraph/internal/etl"
	"github.com/mbaucer/kgraph/internal/platform/envutil"
	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
	"github.com/mbaucer/kgraph/internal/platform/redisdb"
	"github.com/mbaucer/kgraph/internal/retrieval"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML job config")
	flag.Parse()
	if *configPath == "" && flag.NArg() > 0 {
		*configPath = flag.Arg(0)
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: etl -config job.yaml")
		os.Exit(2)
	}

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := etl.LoadJobConfig(*configPath)
	if err != nil {
		log.Error("Could not load job config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	store, err := neo4jdb.New(neo4jdb.ConfigFromEnv(), log)
	if err != nil {
		log.Error("Could not connect to graph store", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := etl.NewEngine(store, log).RunJob(ctx, cfg)
	if err != nil {
		log.Error("Job failed", "job", cfg.Name, "error", err)
		os.Exit(1)
	}

	if summary.NodesCreated+summary.RelationshipsCreated > 0 {
		if redisClient := redisdb.NewFromEnv(log); redisClient != nil {
			cache := retrieval.NewCache(redisClient, 0, log)
			cache.Invalidate(context.Background(), "khop")
			cache.Invalidate(context.Background(), "community")
		}
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
	if summary.Status != etl.StatusSuccess {
		os.Exit(1)
	}
}
