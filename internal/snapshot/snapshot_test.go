package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
)

type execCall struct {
	query  string
	params map[string]any
}

type fakeExecutor struct {
	records map[string][]*neo4j.Record
	execs   []execCall
}

func (f *fakeExecutor) Exec(_ context.Context, query string, params map[string]any) error {
	f.execs = append(f.execs, execCall{query: query, params: params})
	return nil
}

func (f *fakeExecutor) Query(_ context.Context, query string, _ map[string]any) ([]*neo4j.Record, error) {
	for fragment, records := range f.records {
		if strings.Contains(query, fragment) {
			return records, nil
		}
	}
	return nil, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestExport(t *testing.T) {
	exec := &fakeExecutor{records: map[string][]*neo4j.Record{
		"labels(n)": {
			{Keys: []string{"labels", "props"}, Values: []any{
				[]any{"Person"}, map[string]any{"id": "p1", "name": "Alice"},
			}},
			{Keys: []string{"labels", "props"}, Values: []any{
				[]any{"Company"}, map[string]any{"id": "c1", "name": "Acme"},
			}},
		},
		"type(r)": {
			{Keys: []string{"from", "to", "type", "props"}, Values: []any{
				"p1", "c1", "WORKS_AT", map[string]any{"since": "2020"},
			}},
		},
	}}
	manager := newManagerWithExecutor(exec, testLogger(t))

	snap, err := manager.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(snap.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(snap.Nodes))
	}
	if snap.Nodes[0].Label != "Person" || snap.Nodes[0].Props["name"] != "Alice" {
		t.Errorf("unexpected first node: %+v", snap.Nodes[0])
	}
	if len(snap.Relationships) != 1 {
		t.Fatalf("relationships = %d, want 1", len(snap.Relationships))
	}
	if snap.Relationships[0].Type != "WORKS_AT" || snap.Relationships[0].From != "p1" {
		t.Errorf("unexpected relationship: %+v", snap.Relationships[0])
	}
}

func TestSaveAndRestore(t *testing.T) {
	exec := &fakeExecutor{records: map[string][]*neo4j.Record{
		"labels(n)": {
			{Keys: []string{"labels", "props"}, Values: []any{
				[]any{"Person"}, map[string]any{"id": "p1", "name": "Alice"},
			}},
		},
		"type(r)": {
			{Keys: []string{"from", "to", "type", "props"}, Values: []any{
				"p1", "p1", "KNOWS", map[string]any{},
			}},
		},
	}}
	manager := newManagerWithExecutor(exec, testLogger(t))
	path := filepath.Join(t.TempDir(), "snapshot.json")

	if err := manager.Save(context.Background(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}

	exec.execs = nil
	if err := manager.Restore(context.Background(), path); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(exec.execs) != 2 {
		t.Fatalf("exec calls = %d, want 2", len(exec.execs))
	}
	var sawNodes, sawRels bool
	for _, call := range exec.execs {
		if strings.Contains(call.query, "MERGE (n:Person {id: row.id})") {
			sawNodes = true
		}
		if strings.Contains(call.query, "MERGE (a)-[r:KNOWS]->(b)") {
			sawRels = true
		}
	}
	if !sawNodes || !sawRels {
		t.Errorf("missing restore statements, nodes=%v rels=%v", sawNodes, sawRels)
	}
}

func TestRestoreRejectsInvalidLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	payload := `{"nodes":[{"label":"Person) DETACH DELETE (n","props":{"id":"x"}}],"relationships":[]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	manager := newManagerWithExecutor(&fakeExecutor{}, testLogger(t))
	if err := manager.Restore(context.Background(), path); err == nil {
		t.Fatal("expected invalid label error")
	}
}

func TestRestoreSkipsNodesWithoutID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	payload := `{"nodes":[{"label":"Person","props":{"name":"no id"}}],"relationships":[]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	exec := &fakeExecutor{}
	manager := newManagerWithExecutor(exec, testLogger(t))
	if err := manager.Restore(context.Background(), path); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(exec.execs) != 0 {
		t.Errorf("exec calls = %d, want 0", len(exec.execs))
	}
}
