package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

// A snapshot is a plain JSON dump of the graph, sufficient to rebuild it
// with MERGE semantics. It is an operator tool, not a backup format.

type Node struct {
	Label string         `json:"label"`
	Props map[string]any `json:"props"`
}

type Relationship struct {
	From  any            `json:"from"`
	To    any            `json:"to"`
	Type  string         `json:"type"`
	Props map[string]any `json:"props,omitempty"`
}

type Snapshot struct {
	ExportedAt    time.Time      `json:"exported_at"`
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type executor interface {
	Exec(ctx context.Context, query string, params map[string]any) error
	Query(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

type Manager struct {
	exec executor
	log  *logger.Logger
}

func NewManager(client *neo4jdb.Client, log *logger.Logger) *Manager {
	return newManagerWithExecutor(&sessionExecutor{client: client}, log)
}

func newManagerWithExecutor(exec executor, log *logger.Logger) *Manager {
	return &Manager{exec: exec, log: log.With("component", "Snapshot")}
}

func (m *Manager) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{ExportedAt: time.Now().UTC(), Nodes: []Node{}, Relationships: []Relationship{}}

	records, err := m.exec.Query(ctx, `
MATCH (n)
RETURN labels(n) AS labels, properties(n) AS props
`, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: export nodes: %w", err)
	}
	for _, record := range records {
		rawLabels, _ := record.Get("labels")
		rawProps, _ := record.Get("props")
		node := Node{Props: map[string]any{}}
		if labels, ok := rawLabels.([]any); ok && len(labels) > 0 {
			node.Label, _ = labels[0].(string)
		}
		if props, ok := rawProps.(map[string]any); ok {
			node.Props = props
		}
		snap.Nodes = append(snap.Nodes, node)
	}

	records, err = m.exec.Query(ctx, `
MATCH (a)-[r]->(b)
RETURN a.id AS from, b.id AS to, type(r) AS type, properties(r) AS props
`, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: export relationships: %w", err)
	}
	for _, record := range records {
		rawFrom, _ := record.Get("from")
		rawTo, _ := record.Get("to")
		rawType, _ := record.Get("type")
		rawProps, _ := record.Get("props")
		relationship := Relationship{From: rawFrom, To: rawTo}
		relationship.Type, _ = rawType.(string)
		if props, ok := rawProps.(map[string]any); ok {
			relationship.Props = props
		}
		snap.Relationships = append(snap.Relationships, relationship)
	}
	return snap, nil
}

func (m *Manager) Save(ctx context.Context, path string) error {
	snap, err := m.Export(ctx)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	m.log.Info("Snapshot saved", "path", path, "nodes", len(snap.Nodes), "relationships", len(snap.Relationships))
	return nil
}

// Restore replays a snapshot with MERGE semantics, so restoring over a
// live graph updates rather than duplicates.
func (m *Manager) Restore(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("snapshot: decode %s: %w", path, err)
	}

	byLabel := map[string][]map[string]any{}
	for _, node := range snap.Nodes {
		if node.Label == "" || node.Props["id"] == nil {
			continue
		}
		if !identPattern.MatchString(node.Label) {
			return fmt.Errorf("snapshot: invalid label %q", node.Label)
		}
		byLabel[node.Label] = append(byLabel[node.Label], map[string]any{
			"id": node.Props["id"], "props": node.Props,
		})
	}
	for label, rows := range byLabel {
		query := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {id: row.id})
SET n += row.props
`, label)
		if err := m.exec.Exec(ctx, query, map[string]any{"rows": rows}); err != nil {
			return fmt.Errorf("snapshot: restore %s nodes: %w", label, err)
		}
	}

	byType := map[string][]map[string]any{}
	for _, relationship := range snap.Relationships {
		if relationship.Type == "" || relationship.From == nil || relationship.To == nil {
			continue
		}
		if !identPattern.MatchString(relationship.Type) {
			return fmt.Errorf("snapshot: invalid relationship type %q", relationship.Type)
		}
		props := relationship.Props
		if props == nil {
			props = map[string]any{}
		}
		byType[relationship.Type] = append(byType[relationship.Type], map[string]any{
			"from": relationship.From, "to": relationship.To, "props": props,
		})
	}
	for relType, rows := range byType {
		query := fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a {id: row.from})
MATCH (b {id: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props
`, relType)
		if err := m.exec.Exec(ctx, query, map[string]any{"rows": rows}); err != nil {
			return fmt.Errorf("snapshot: restore %s relationships: %w", relType, err)
		}
	}

	m.log.Info("Snapshot restored", "path", path, "nodes", len(snap.Nodes), "relationships", len(snap.Relationships))
	return nil
}

type sessionExecutor struct {
	client *neo4jdb.Client
}

func (s *sessionExecutor) Exec(ctx context.Context, query string, params map[string]any) error {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)
	res, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (s *sessionExecutor) Query(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}
