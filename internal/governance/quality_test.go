package governance

import (
	"context"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
)

type fakeRunner struct {
	byFragment map[string][]*neo4j.Record
}

func (f *fakeRunner) Run(_ context.Context, query string, _ map[string]any) ([]*neo4j.Record, error) {
	for fragment, records := range f.byFragment {
		if strings.Contains(query, fragment) {
			return records, nil
		}
	}
	return nil, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestRunAll(t *testing.T) {
	runner := &fakeRunner{byFragment: map[string][]*neo4j.Record{
		"duration": {
			{Keys: []string{"name", "updated"}, Values: []any{"OldThing", "2023-01-01T00:00:00Z"}},
		},
		"size(n.tags)": {
			{Keys: []string{"name"}, Values: []any{"Untagged"}},
		},
		"degree": {
			{Keys: []string{"name", "degree"}, Values: []any{"Hub", int64(120)}},
		},
	}}

	report, err := newQAWithRunner(runner, testLogger(t)).RunAll(context.Background(), 90, 50)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if report.Clean() {
		t.Fatal("report should not be clean")
	}
	if len(report.Issues) != 3 {
		t.Fatalf("issues = %v", report.Issues)
	}
	if report.Stale[0].Name != "OldThing" || report.HighDegree[0].Degree != 120 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunAllClean(t *testing.T) {
	report, err := newQAWithRunner(&fakeRunner{}, testLogger(t)).RunAll(context.Background(), 90, 50)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}
}
