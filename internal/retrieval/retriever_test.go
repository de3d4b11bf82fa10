package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/mbaucer/kgraph/internal/platform/logger"
)

type stub struct {
	match   func(query string, params map[string]any) bool
	records []*neo4j.Record
	err     error
}

type fakeRunner struct {
	stubs   []stub
	queries []string
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	f.queries = append(f.queries, query)
	for _, s := range f.stubs {
		if s.match(query, params) {
			return s.records, s.err
		}
	}
	return nil, nil
}

func matchContains(fragment string) func(string, map[string]any) bool {
	return func(query string, _ map[string]any) bool {
		return strings.Contains(query, fragment)
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func node(elementID, id, name string, labels ...string) dbtype.Node {
	return dbtype.Node{
		ElementId: elementID,
		Labels:    labels,
		Props:     map[string]any{"id": id, "name": name},
	}
}

func rel(elementID, start, end, relType string) dbtype.Relationship {
	return dbtype.Relationship{
		ElementId:      elementID,
		StartElementId: start,
		EndElementId:   end,
		Type:           relType,
		Props:          map[string]any{},
	}
}

func subgraphRecord(nodes []dbtype.Node, rels []dbtype.Relationship) *neo4j.Record {
	rawNodes := make([]any, len(nodes))
	for i, n := range nodes {
		rawNodes[i] = n
	}
	rawRels := make([]any, len(rels))
	for i, r := range rels {
		rawRels[i] = r
	}
	return &neo4j.Record{Keys: []string{"nodes", "relationships"}, Values: []any{rawNodes, rawRels}}
}

func nameRecord(name string) *neo4j.Record {
	return &neo4j.Record{Keys: []string{"name"}, Values: []any{name}}
}

func TestKHopSubgraph(t *testing.T) {
	a := node("e1", "p1", "Alpha", "Project")
	b := node("e2", "p2", "Beta", "Project")
	c := node("e3", "p3", "Gamma", "Tool")
	runner := &fakeRunner{stubs: []stub{{
		match: matchContains("subgraphAll"),
		records: []*neo4j.Record{
			subgraphRecord([]dbtype.Node{a, b}, []dbtype.Relationship{rel("r1", "e1", "e2", "DEPENDS_ON")}),
			// Second seed row overlaps the first; union must deduplicate.
			subgraphRecord([]dbtype.Node{b, c}, []dbtype.Relationship{
				rel("r1", "e1", "e2", "DEPENDS_ON"),
				rel("r2", "e2", "e3", "USES"),
			}),
		},
	}}}

	sub, err := newWithRunner(runner, testLogger(t)).KHopSubgraph(context.Background(), []string{"Alpha", "Beta"}, 2, 50)
	if err != nil {
		t.Fatalf("khop: %v", err)
	}
	if sub.Count != 3 || len(sub.Nodes) != 3 {
		t.Fatalf("node count = %d", sub.Count)
	}
	if len(sub.Relationships) != 2 {
		t.Fatalf("edges = %v", sub.Relationships)
	}
	if sub.Relationships[0].From != "Alpha" || sub.Relationships[0].To != "Beta" {
		t.Fatalf("edge endpoints = %+v", sub.Relationships[0])
	}
	if sub.Hops != 2 || len(sub.Seeds) != 2 {
		t.Fatalf("metadata = %+v", sub)
	}
	if sub.Nodes[0]["label"] != "Project" {
		t.Fatalf("label not carried: %v", sub.Nodes[0])
	}
}

func TestKHopSubgraphNodeCeiling(t *testing.T) {
	nodes := []dbtype.Node{
		node("e1", "p1", "Alpha"),
		node("e2", "p2", "Beta"),
		node("e3", "p3", "Gamma"),
	}
	runner := &fakeRunner{stubs: []stub{{
		match: matchContains("subgraphAll"),
		records: []*neo4j.Record{subgraphRecord(nodes, []dbtype.Relationship{
			rel("r1", "e1", "e3", "USES"),
		})},
	}}}

	sub, err := newWithRunner(runner, testLogger(t)).KHopSubgraph(context.Background(), []string{"Alpha"}, 1, 2)
	if err != nil {
		t.Fatalf("khop: %v", err)
	}
	if sub.Count != 2 {
		t.Fatalf("ceiling not applied: %d nodes", sub.Count)
	}
	// Gamma fell outside the ceiling, so its edge must be dropped too.
	if len(sub.Relationships) != 0 {
		t.Fatalf("dangling edge kept: %v", sub.Relationships)
	}
}

func TestKHopSubgraphValidation(t *testing.T) {
	r := newWithRunner(&fakeRunner{}, testLogger(t))
	ctx := context.Background()

	if _, err := r.KHopSubgraph(ctx, nil, 2, 50); err == nil {
		t.Fatal("expected error for empty seeds")
	}
	if _, err := r.KHopSubgraph(ctx, []string{"a"}, 0, 50); err == nil {
		t.Fatal("expected error for k = 0")
	}
	if _, err := r.KHopSubgraph(ctx, []string{"a"}, MaxHops+1, 50); err == nil {
		t.Fatal("expected error for k above the cap")
	}
	if _, err := r.KHopSubgraph(ctx, []string{"a"}, 2, 0); err == nil {
		t.Fatal("expected error for max_nodes = 0")
	}
}

func TestSemanticSubgraph(t *testing.T) {
	runner := &fakeRunner{stubs: []stub{
		{match: matchContains("fulltext"), records: []*neo4j.Record{nameRecord("Alpha")}},
		{match: matchContains("subgraphAll"), records: []*neo4j.Record{
			subgraphRecord([]dbtype.Node{node("e1", "p1", "Alpha")}, nil),
		}},
	}}

	sub, err := newWithRunner(runner, testLogger(t)).SemanticSubgraph(context.Background(), "alpha things", 5, 1)
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if sub.Method != MethodSemantic {
		t.Fatalf("method = %q", sub.Method)
	}
	if sub.Query != "alpha things" || sub.Count != 1 {
		t.Fatalf("subgraph = %+v", sub)
	}
}

func TestSemanticSubgraphFallback(t *testing.T) {
	runner := &fakeRunner{stubs: []stub{
		{match: matchContains("fulltext"), records: nil},
		{match: matchContains("CONTAINS"), records: []*neo4j.Record{nameRecord("Beta")}},
		{match: matchContains("subgraphAll"), records: []*neo4j.Record{
			subgraphRecord([]dbtype.Node{node("e2", "p2", "Beta")}, nil),
		}},
	}}

	sub, err := newWithRunner(runner, testLogger(t)).SemanticSubgraph(context.Background(), "beta", 5, 1)
	if err != nil {
		t.Fatalf("semantic: %v", err)
	}
	if sub.Method != MethodFallback {
		t.Fatalf("method = %q", sub.Method)
	}
}

func TestSemanticSubgraphNoMatch(t *testing.T) {
	runner := &fakeRunner{}

	sub, err := newWithRunner(runner, testLogger(t)).SemanticSubgraph(context.Background(), "nothing here", 5, 1)
	if err != nil {
		t.Fatalf("no-match must not error: %v", err)
	}
	if sub.Count != 0 || len(sub.Nodes) != 0 {
		t.Fatalf("subgraph = %+v", sub)
	}
	if sub.Query != "nothing here" {
		t.Fatalf("query not preserved: %q", sub.Query)
	}
}

func resolveStub(ref, eid, name string) stub {
	return stub{
		match: func(query string, params map[string]any) bool {
			return strings.Contains(query, "elementId(n)") && params["ref"] == ref
		},
		records: []*neo4j.Record{{Keys: []string{"eid", "name"}, Values: []any{eid, name}}},
	}
}

func TestPathRetrieval(t *testing.T) {
	p := dbtype.Path{
		Nodes: []dbtype.Node{
			node("e1", "p1", "Alpha"),
			node("e2", "p2", "Beta"),
		},
		Relationships: []dbtype.Relationship{rel("r1", "e1", "e2", "DEPENDS_ON")},
	}
	runner := &fakeRunner{stubs: []stub{
		resolveStub("Alpha", "e1", "Alpha"),
		resolveStub("Beta", "e2", "Beta"),
		{match: matchContains("allShortestPaths"), records: []*neo4j.Record{
			{Keys: []string{"path"}, Values: []any{p}},
		}},
	}}

	result, err := newWithRunner(runner, testLogger(t)).PathRetrieval(context.Background(), "Alpha", "Beta", 5)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("count = %d", result.Count)
	}
	got := result.Paths[0]
	if got.Length != 1 {
		t.Fatalf("length = %d", got.Length)
	}
	if got.Nodes[0] != "Alpha" || got.Nodes[1] != "Beta" {
		t.Fatalf("nodes = %v", got.Nodes)
	}
	var pathQuery string
	for _, q := range runner.queries {
		if strings.Contains(q, "allShortestPaths") {
			pathQuery = q
		}
	}
	if !strings.Contains(pathQuery, fmt.Sprintf("[*..%d]", maxPathHops)) {
		t.Fatalf("hop ceiling missing from path query: %q", pathQuery)
	}
	if got.Relationships[0] != "DEPENDS_ON" {
		t.Fatalf("relationships = %v", got.Relationships)
	}
}

func TestPathRetrievalUnresolvableEndpoint(t *testing.T) {
	runner := &fakeRunner{stubs: []stub{resolveStub("Alpha", "e1", "Alpha")}}

	result, err := newWithRunner(runner, testLogger(t)).PathRetrieval(context.Background(), "Alpha", "Missing", 5)
	if err != nil {
		t.Fatalf("unresolvable endpoint must not error: %v", err)
	}
	if result.Count != 0 || len(result.Paths) != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestPathRetrievalIdenticalEndpoints(t *testing.T) {
	runner := &fakeRunner{stubs: []stub{resolveStub("Alpha", "e1", "Alpha")}}

	result, err := newWithRunner(runner, testLogger(t)).PathRetrieval(context.Background(), "Alpha", "Alpha", 5)
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("count = %d", result.Count)
	}
	if p := result.Paths[0]; p.Length != 0 || len(p.Nodes) != 1 || len(p.Relationships) != 0 {
		t.Fatalf("expected single zero-length path, got %+v", p)
	}
	// The path query itself must not have run.
	for _, q := range runner.queries {
		if strings.Contains(q, "allShortestPaths") {
			t.Fatal("path query issued for identical endpoints")
		}
	}
}

func TestCommunitySubgraph(t *testing.T) {
	runner := &fakeRunner{stubs: []stub{{
		match: matchContains("n.community"),
		records: []*neo4j.Record{
			subgraphRecord([]dbtype.Node{node("e1", "p1", "Alpha")}, nil),
		},
	}}}

	sub, err := newWithRunner(runner, testLogger(t)).CommunitySubgraph(context.Background(), "c42", 2)
	if err != nil {
		t.Fatalf("community: %v", err)
	}
	if sub.Community != "c42" || sub.Method != MethodCommunity || sub.Count != 1 {
		t.Fatalf("subgraph = %+v", sub)
	}

	if _, err := newWithRunner(runner, testLogger(t)).CommunitySubgraph(context.Background(), "", 2); err == nil {
		t.Fatal("expected error for empty community id")
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := cacheKey("khop", map[string]any{"k": 2, "seeds": []string{"x"}, "max_nodes": 50})
	b := cacheKey("khop", map[string]any{"max_nodes": 50, "seeds": []string{"x"}, "k": 2})
	if a != b {
		t.Fatalf("cache key depends on map order: %q vs %q", a, b)
	}
	c := cacheKey("khop", map[string]any{"k": 3, "seeds": []string{"x"}, "max_nodes": 50})
	if a == c {
		t.Fatal("different params produced the same cache key")
	}
}

func TestCacheNilSafe(t *testing.T) {
	var cache *Cache
	params := map[string]any{"k": 2}

	var out Subgraph
	if cache.Get(context.Background(), "khop", params, &out) {
		t.Fatal("nil cache reported a hit")
	}
	cache.Set(context.Background(), "khop", params, &Subgraph{})
	if n := cache.Invalidate(context.Background(), "khop"); n != 0 {
		t.Fatalf("nil cache invalidated %d keys", n)
	}
}
