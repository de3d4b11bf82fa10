package extraction

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mbaucer/kgraph/internal/platform/logger"
)

type recordingRunner struct {
	query  string
	params map[string]any
}

func (r *recordingRunner) Run(_ context.Context, query string, params map[string]any) (int64, error) {
	r.query = query
	r.params = params
	rows := params["triples"].([]map[string]any)
	return int64(len(rows)), nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestUpsertTriples(t *testing.T) {
	runner := &recordingRunner{}
	store := newStoreWithRunner(runner, testLogger(t))

	extracted := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	count, err := store.UpsertTriples(context.Background(), []Triple{
		{Subject: "kgraph", Predicate: "depends_on", Object: "neo4j", Confidence: 0.9, Source: "dep_parse", ExtractedAt: extracted},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}

	// One statement carries both the create path and the increment path.
	if !strings.Contains(runner.query, "observation_count = 1") {
		t.Fatal("create path must initialize observation_count")
	}
	if !strings.Contains(runner.query, "observation_count = r.observation_count + 1") {
		t.Fatal("match path must increment observation_count atomically")
	}
	if !strings.Contains(runner.query, "last_seen") {
		t.Fatal("match path must stamp last_seen")
	}

	rows := runner.params["triples"].([]map[string]any)
	if rows[0]["extracted_at"] != extracted {
		t.Fatalf("extracted_at = %v", rows[0]["extracted_at"])
	}
}

func TestUpsertTriplesValidation(t *testing.T) {
	store := newStoreWithRunner(&recordingRunner{}, testLogger(t))

	if _, err := store.UpsertTriples(context.Background(), []Triple{{Subject: "a"}}); err == nil {
		t.Fatal("expected error for incomplete triple")
	}
	if _, err := store.UpsertTriples(context.Background(), []Triple{
		{Subject: "a", Predicate: "p", Object: "b", Confidence: 1.5},
	}); err == nil {
		t.Fatal("expected error for confidence outside [0,1]")
	}

	count, err := store.UpsertTriples(context.Background(), nil)
	if err != nil || count != 0 {
		t.Fatalf("empty batch: count=%d err=%v", count, err)
	}
}

func TestUpsertTriplesDefaultsExtractedAt(t *testing.T) {
	runner := &recordingRunner{}
	store := newStoreWithRunner(runner, testLogger(t))

	before := time.Now().UTC()
	if _, err := store.UpsertTriples(context.Background(), []Triple{
		{Subject: "a", Predicate: "p", Object: "b", Confidence: 0.5},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rows := runner.params["triples"].([]map[string]any)
	ts, ok := rows[0]["extracted_at"].(time.Time)
	if !ok || ts.Before(before) {
		t.Fatalf("extracted_at not defaulted: %v", rows[0]["extracted_at"])
	}
}
