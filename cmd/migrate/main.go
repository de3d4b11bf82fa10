package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mbaucer/kgraph/internal/migrate"
	"github.com/mbaucer/kgraph/internal/platform/envutil"
	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding .cypher migration files")
	flag.Parse()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := neo4jdb.New(neo4jdb.ConfigFromEnv(), log)
	if err != nil {
		log.Error("Could not connect to graph store", "error", err)
		os.Exit(1)
	}
	defer store.Close(context.Background())

	applied, err := migrate.NewRunner(store, log).Apply(context.Background(), *dir)
	if err != nil {
		log.Error("Migration failed", "error", err)
		os.Exit(1)
	}
	if len(applied) == 0 {
		log.Info("No pending migrations")
		return
	}
	for _, m := range applied {
		log.Info("Applied migration", "version", m.Version, "name", m.Name)
	}
}
