package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

type Stats struct {
	TotalEntities      int64            `json:"total_entities"`
	TotalRelationships int64            `json:"total_relationships"`
	EntityTypes        map[string]int64 `json:"entity_types"`
	RelationshipTypes  map[string]int64 `json:"relationship_types"`
}

type SearchHit struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Label       string   `json:"type"`
	Tags        []string `json:"tags"`
	Description string   `json:"description,omitempty"`
}

type EntityRelation struct {
	Type      string `json:"type"`
	Entity    string `json:"entity"`
	Direction string `json:"direction"`
}

type EntityDetail struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Labels        []string         `json:"labels"`
	Properties    map[string]any   `json:"properties"`
	Relationships []EntityRelation `json:"relationships"`
}

type runner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

// Reader serves the aggregate and lookup queries behind the HTTP layer.
type Reader struct {
	runner runner
	log    *logger.Logger
}

func NewReader(client *neo4jdb.Client, log *logger.Logger) *Reader {
	return newReaderWithRunner(&sessionReader{client: client}, log)
}

func newReaderWithRunner(r runner, log *logger.Logger) *Reader {
	return &Reader{runner: r, log: log.With("component", "GraphReader")}
}

func (r *Reader) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{EntityTypes: map[string]int64{}, RelationshipTypes: map[string]int64{}}

	records, err := r.runner.Run(ctx, `
MATCH (n)
RETURN labels(n) AS type, count(*) AS count
`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: count entities: %w", err)
	}
	for _, record := range records {
		rawLabels, _ := record.Get("type")
		rawCount, _ := record.Get("count")
		count, _ := rawCount.(int64)
		labels, _ := rawLabels.([]any)
		parts := make([]string, 0, len(labels))
		for _, l := range labels {
			if s, ok := l.(string); ok {
				parts = append(parts, s)
			}
		}
		stats.EntityTypes[strings.Join(parts, ",")] += count
		stats.TotalEntities += count
	}

	records, err = r.runner.Run(ctx, `
MATCH ()-[r]->()
RETURN type(r) AS type, count(*) AS count
`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph: count relationships: %w", err)
	}
	for _, record := range records {
		rawType, _ := record.Get("type")
		rawCount, _ := record.Get("count")
		relType, _ := rawType.(string)
		count, _ := rawCount.(int64)
		stats.RelationshipTypes[relType] += count
		stats.TotalRelationships += count
	}
	return stats, nil
}

const searchCypher = `
MATCH (n)
WHERE n.name CONTAINS $query
   OR any(tag IN n.tags WHERE tag CONTAINS $query)
   OR n.description CONTAINS $query
RETURN n
LIMIT $limit
`

func (r *Reader) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	records, err := r.runner.Run(ctx, searchCypher, map[string]any{"query": query, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("graph: search: %w", err)
	}

	hits := make([]SearchHit, 0, len(records))
	for _, record := range records {
		raw, _ := record.Get("n")
		node, ok := raw.(dbtype.Node)
		if !ok {
			continue
		}
		hit := SearchHit{Tags: []string{}}
		hit.ID, _ = node.Props["id"].(string)
		hit.Name, _ = node.Props["name"].(string)
		hit.Description, _ = node.Props["description"].(string)
		if len(node.Labels) > 0 {
			hit.Label = node.Labels[0]
		} else {
			hit.Label = "Unknown"
		}
		if rawTags, ok := node.Props["tags"].([]any); ok {
			for _, t := range rawTags {
				if s, ok := t.(string); ok {
					hit.Tags = append(hit.Tags, s)
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Entity returns a node plus its incident relationships, or nil when no
// node carries the id.
func (r *Reader) Entity(ctx context.Context, entityID string) (*EntityDetail, error) {
	records, err := r.runner.Run(ctx, `
MATCH (n {id: $entity_id})
RETURN n, labels(n) AS labels
LIMIT 1
`, map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, fmt.Errorf("graph: load entity: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	raw, _ := records[0].Get("n")
	node, ok := raw.(dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("graph: unexpected entity shape %T", raw)
	}
	detail := &EntityDetail{
		Properties:    node.Props,
		Labels:        []string{},
		Relationships: []EntityRelation{},
	}
	detail.ID, _ = node.Props["id"].(string)
	detail.Name, _ = node.Props["name"].(string)
	if rawLabels, _ := records[0].Get("labels"); rawLabels != nil {
		if labels, ok := rawLabels.([]any); ok {
			for _, l := range labels {
				if s, ok := l.(string); ok {
					detail.Labels = append(detail.Labels, s)
				}
			}
		}
	}

	relRecords, err := r.runner.Run(ctx, `
MATCH (n {id: $entity_id})-[r]-(m)
RETURN type(r) AS type, coalesce(m.name, m.id) AS related_entity,
       startNode(r).id = $entity_id AS is_outgoing
`, map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, fmt.Errorf("graph: load entity relationships: %w", err)
	}
	for _, record := range relRecords {
		rawType, _ := record.Get("type")
		rawRelated, _ := record.Get("related_entity")
		rawOut, _ := record.Get("is_outgoing")
		relation := EntityRelation{Direction: "in"}
		relation.Type, _ = rawType.(string)
		relation.Entity, _ = rawRelated.(string)
		if out, _ := rawOut.(bool); out {
			relation.Direction = "out"
		}
		detail.Relationships = append(detail.Relationships, relation)
	}
	return detail, nil
}

type sessionReader struct {
	client *neo4jdb.Client
}

func (s *sessionReader) Run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]*neo4j.Record), nil
}
