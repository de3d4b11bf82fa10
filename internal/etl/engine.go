package etl

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

const (
	StatusSuccess   = "success"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
)

type JobSummary struct {
	Status               string   `json:"status"`
	Job                  string   `json:"job"`
	RunID                string   `json:"run_id"`
	RecordsProcessed     int      `json:"records_processed"`
	NodesCreated         int64    `json:"nodes_created"`
	RelationshipsCreated int64    `json:"relationships_created"`
	FailedBatches        int      `json:"failed_batches"`
	DurationSeconds      float64  `json:"duration_seconds"`
	Throughput           float64  `json:"throughput"`
	Errors               []string `json:"errors,omitempty"`
}

type Engine struct {
	writer BatchWriter
	log    *logger.Logger
}

func NewEngine(client *neo4jdb.Client, log *logger.Logger) *Engine {
	return NewEngineWithWriter(NewGraphWriter(client), log)
}

// NewEngineWithWriter lets tests substitute the graph store.
func NewEngineWithWriter(writer BatchWriter, log *logger.Logger) *Engine {
	return &Engine{writer: writer, log: log.With("component", "ETLEngine")}
}

// RunJob executes a full ingestion job: eager source load, then one
// bounded worker pool per mapping. Batch failures are isolated and
// aggregated; configuration and source errors abort before any write.
func (e *Engine) RunJob(ctx context.Context, cfg *JobConfig) (*JobSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := e.log.With("job", cfg.Name, "run_id", runID)
	log.Info("Starting ETL job", "source_type", cfg.Source.Type, "connection", cfg.Source.Connection)
	start := time.Now()

	records, err := LoadRecords(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded records", "count", len(records))

	batches := SplitBatches(records, cfg.BatchSize)

	var (
		nodeTotal atomic.Int64
		relTotal  atomic.Int64
		mu        sync.Mutex
		failures  []error
	)
	recordFailure := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	workers := cfg.ParallelWorkers
	if workers > MaxParallelWorkers {
		workers = MaxParallelWorkers
	}

	// One pool for the whole job; mappings run one at a time with a full
	// drain between them, bounding peak store connections.
	var g errgroup.Group
	g.SetLimit(workers)

	for _, mapping := range cfg.EntityMappings {
		mapping := mapping
		mlog := log.With("label", mapping.Label)
		mlog.Info("Processing entity mapping", "batches", len(batches))

		for idx, batch := range batches {
			if ctx.Err() != nil {
				break
			}
			idx, batch := idx, batch
			g.Go(func() error {
				rows, err := BuildEntityRows(mapping, batch)
				if err != nil {
					mlog.Warn("Batch mapping failed", "batch", idx, "error", err)
					recordFailure(&BatchWriteError{Label: mapping.Label, BatchIndex: idx, Err: err})
					return nil
				}
				query := entityCypher(mapping, cfg.UpsertStrategy)
				n, err := e.writer.WriteBatch(ctx, query, map[string]any{"batch": rows})
				if err != nil {
					mlog.Warn("Batch write failed", "batch", idx, "error", err)
					recordFailure(&BatchWriteError{Label: mapping.Label, BatchIndex: idx, Err: err})
					return nil
				}
				nodeTotal.Add(n)
				mlog.Debug("Batch written", "batch", idx, "upserts", n)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, mapping := range cfg.RelationshipMappings {
		mapping := mapping
		mlog := log.With("rel_type", mapping.Type)
		mlog.Info("Processing relationship mapping", "batches", len(batches))

		for idx, batch := range batches {
			if ctx.Err() != nil {
				break
			}
			idx, batch := idx, batch
			g.Go(func() error {
				rows, err := BuildRelationshipRows(mapping, batch)
				if err != nil {
					mlog.Warn("Batch mapping failed", "batch", idx, "error", err)
					recordFailure(&BatchWriteError{Label: mapping.Type, BatchIndex: idx, Err: err})
					return nil
				}
				n, err := e.writer.WriteBatch(ctx, relationshipCypher(mapping), map[string]any{"batch": rows})
				if err != nil {
					mlog.Warn("Batch write failed", "batch", idx, "error", err)
					recordFailure(&BatchWriteError{Label: mapping.Type, BatchIndex: idx, Err: err})
					return nil
				}
				relTotal.Add(n)
				mlog.Debug("Batch written", "batch", idx, "upserts", n)
				return nil
			})
		}
		_ = g.Wait()
	}

	duration := time.Since(start).Seconds()
	summary := &JobSummary{
		Status:               StatusSuccess,
		Job:                  cfg.Name,
		RunID:                runID,
		RecordsProcessed:     len(records),
		NodesCreated:         nodeTotal.Load(),
		RelationshipsCreated: relTotal.Load(),
		FailedBatches:        len(failures),
		DurationSeconds:      duration,
	}
	if duration > 0 {
		summary.Throughput = float64(len(records)) / duration
	}
	for _, f := range failures {
		summary.Errors = append(summary.Errors, f.Error())
	}
	switch {
	case ctx.Err() != nil:
		summary.Status = StatusCancelled
	case len(failures) > 0:
		summary.Status = StatusPartial
	}

	log.Info("ETL job finished",
		"status", summary.Status,
		"records", summary.RecordsProcessed,
		"nodes", summary.NodesCreated,
		"relationships", summary.RelationshipsCreated,
		"failed_batches", summary.FailedBatches,
		"duration_seconds", summary.DurationSeconds,
	)
	return summary, nil
}

// SplitBatches slices records into ceil(n/size) batches. Batch indices
// follow input order; logs and failures key on those indices.
func SplitBatches(records []Record, size int) [][]Record {
	if size < 1 {
		size = 1
	}
	var batches [][]Record
	for i := 0; i < len(records); i += size {
		end := i + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[i:end])
	}
	return batches
}
