package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
)

type fakeExecutor struct {
	applied  []string // versions already in the store
	executed []string
	tracked  []map[string]any
}

func (f *fakeExecutor) Exec(_ context.Context, query string, params map[string]any) error {
	if strings.Contains(query, ":Migration") && params != nil {
		f.tracked = append(f.tracked, params)
		return nil
	}
	f.executed = append(f.executed, query)
	return nil
}

func (f *fakeExecutor) Query(_ context.Context, query string, _ map[string]any) ([]*neo4j.Record, error) {
	if !strings.Contains(query, "m.version") {
		return nil, nil
	}
	records := make([]*neo4j.Record, 0, len(f.applied))
	for _, v := range f.applied {
		records = append(records, &neo4j.Record{Keys: []string{"version"}, Values: []any{v}})
	}
	return records, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func writeMigrations(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"001_constraints.cypher": "CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE;\n// comment only\n",
		"002_indexes.cypher":     "CREATE INDEX entity_name IF NOT EXISTS FOR (n:Entity) ON (n.name)",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestApplyPending(t *testing.T) {
	exec := &fakeExecutor{}
	runner := newRunnerWithExecutor(exec, testLogger(t))

	done, err := runner.Apply(context.Background(), writeMigrations(t))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("applied = %v", done)
	}
	if done[0].Version != "001" || done[0].Name != "constraints" {
		t.Fatalf("first = %+v", done[0])
	}
	if len(exec.executed) != 2 {
		t.Fatalf("statements executed = %v", exec.executed)
	}
	if len(exec.tracked) != 2 {
		t.Fatalf("bookkeeping nodes = %d", len(exec.tracked))
	}
	if exec.tracked[0]["checksum"] == "" || len(exec.tracked[0]["checksum"].(string)) != 16 {
		t.Fatalf("checksum = %v", exec.tracked[0]["checksum"])
	}
}

func TestApplySkipsApplied(t *testing.T) {
	exec := &fakeExecutor{applied: []string{"001"}}
	runner := newRunnerWithExecutor(exec, testLogger(t))

	done, err := runner.Apply(context.Background(), writeMigrations(t))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(done) != 1 || done[0].Version != "002" {
		t.Fatalf("applied = %v", done)
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum("CREATE INDEX x")
	b := Checksum("CREATE INDEX x")
	if a != b || len(a) != 16 {
		t.Fatalf("checksum unstable: %q vs %q", a, b)
	}
	if a == Checksum("CREATE INDEX y") {
		t.Fatal("different content produced the same checksum")
	}
}
