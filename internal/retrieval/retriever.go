package retrieval

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

const (
	// Hop ceiling for neighborhood expansion; bounds the blast radius of a
	// single retrieval call.
	MaxHops = 5
	// Path search depth ceiling, from the store side of the contract.
	maxPathHops = 6
	// Node ceiling applied when semantic search delegates to expansion.
	semanticNodeCeiling = 50

	defaultFulltextIndex = "entity_search"

	MethodSemantic  = "semantic"
	MethodFallback  = "fallback"
	MethodCommunity = "community"
)

type Node map[string]any

type Edge struct {
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

type Subgraph struct {
	Nodes         []Node   `json:"nodes"`
	Relationships []Edge   `json:"relationships"`
	Count         int      `json:"count"`
	Hops          int      `json:"hops,omitempty"`
	Seeds         []string `json:"seeds,omitempty"`
	Query         string   `json:"query,omitempty"`
	Community     string   `json:"community,omitempty"`
	Method        string   `json:"method,omitempty"`
}

type Path struct {
	Length        int      `json:"length"`
	Nodes         []string `json:"nodes"`
	Relationships []string `json:"relationships"`
}

type PathResult struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Paths []Path `json:"paths"`
	Count int    `json:"count"`
}

// readRunner abstracts a read-only query round-trip so tests can feed
// recorded results instead of a live store.
type readRunner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

// Retriever serves bounded, relevance-ranked subgraphs. All operations are
// stateless single-shot reads; nothing is held across calls.
type Retriever struct {
	runner        readRunner
	cache         *Cache
	fulltextIndex string
	log           *logger.Logger
}

type Option func(*Retriever)

func WithCache(cache *Cache) Option {
	return func(r *Retriever) { r.cache = cache }
}

func WithFulltextIndex(name string) Option {
	return func(r *Retriever) { r.fulltextIndex = name }
}

func New(client *neo4jdb.Client, log *logger.Logger, opts ...Option) *Retriever {
	return newWithRunner(&sessionReader{client: client}, log, opts...)
}

func newWithRunner(runner readRunner, log *logger.Logger, opts ...Option) *Retriever {
	r := &Retriever{
		runner:        runner,
		fulltextIndex: defaultFulltextIndex,
		log:           log.With("component", "Retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const kHopCypher = `
UNWIND $seeds AS seed
MATCH (n)
WHERE n.id = seed OR n.name = seed
CALL apoc.path.subgraphAll(n, {maxLevel: $k, limit: $max_nodes})
YIELD nodes, relationships
RETURN nodes, relationships
`

// KHopSubgraph expands the union of all seeds' k-hop neighborhoods,
// truncated to maxNodes. Seeds resolve by id or name; unresolvable seeds
// simply contribute nothing.
func (r *Retriever) KHopSubgraph(ctx context.Context, seeds []string, k, maxNodes int) (*Subgraph, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("retrieval: at least one seed required")
	}
	if k < 1 || k > MaxHops {
		return nil, fmt.Errorf("retrieval: hops %d outside [1,%d]", k, MaxHops)
	}
	if maxNodes < 1 {
		return nil, fmt.Errorf("retrieval: max_nodes must be positive")
	}

	params := map[string]any{"seeds": seeds, "k": k, "max_nodes": maxNodes}
	if cached, ok := lookupSubgraph(ctx, r.cache, "khop", params); ok {
		return cached, nil
	}

	records, err := r.runner.Run(ctx, kHopCypher, params)
	if err != nil {
		return nil, fmt.Errorf("retrieval: k-hop query: %w", err)
	}

	sub := assembleSubgraph(records, maxNodes)
	sub.Hops = k
	sub.Seeds = seeds
	storeSubgraph(ctx, r.cache, "khop", params, sub)
	return sub, nil
}

const fulltextCypher = `
CALL db.index.fulltext.queryNodes($index, $query)
YIELD node, score
RETURN node.name AS name
ORDER BY score DESC
LIMIT $top_k
`

const containsCypher = `
MATCH (n)
WHERE n.name CONTAINS $query
   OR any(tag IN n.tags WHERE tag CONTAINS $query)
RETURN n.name AS name
LIMIT $top_k
`

// SemanticSubgraph resolves seeds with ranked full-text search, falls back
// to substring containment, and never errors on "no match": the empty
// result keeps the original query for diagnostics.
func (r *Retriever) SemanticSubgraph(ctx context.Context, query string, topK, expandHops int) (*Subgraph, error) {
	if query == "" {
		return nil, fmt.Errorf("retrieval: query required")
	}
	if topK < 1 {
		topK = 10
	}
	if expandHops < 1 || expandHops > MaxHops {
		expandHops = 1
	}

	method := MethodSemantic
	seeds, err := r.collectNames(ctx, fulltextCypher, map[string]any{
		"index": r.fulltextIndex, "query": query, "top_k": topK,
	})
	if err != nil {
		// Missing index or unsupported procedure degrades to the fallback.
		r.log.Warn("Fulltext search unavailable, using substring fallback", "error", err)
		seeds = nil
	}
	if len(seeds) == 0 {
		method = MethodFallback
		seeds, err = r.collectNames(ctx, containsCypher, map[string]any{
			"query": query, "top_k": topK,
		})
		if err != nil {
			return nil, fmt.Errorf("retrieval: fallback search: %w", err)
		}
	}
	if len(seeds) == 0 {
		r.log.Info("No entities matched query", "query", query)
		return &Subgraph{Nodes: []Node{}, Relationships: []Edge{}, Query: query}, nil
	}

	sub, err := r.KHopSubgraph(ctx, seeds, expandHops, semanticNodeCeiling)
	if err != nil {
		return nil, err
	}
	sub.Query = query
	sub.Method = method
	return sub, nil
}

const resolveEntityCypher = `
MATCH (n)
WHERE n.id = $ref OR n.name = $ref
RETURN elementId(n) AS eid, coalesce(n.name, n.id) AS name
LIMIT 1
`

var shortestPathsCypher = fmt.Sprintf(`
MATCH (a), (b)
WHERE elementId(a) = $a AND elementId(b) = $b
MATCH path = allShortestPaths((a)-[*..%d]-(b))
RETURN path
LIMIT $max_paths
`, maxPathHops)

// PathRetrieval returns up to maxPaths shortest paths between two entity
// references. An unresolvable endpoint yields an empty path list, not an
// error. Ties among equal-length paths follow the store's enumeration
// order.
func (r *Retriever) PathRetrieval(ctx context.Context, entityA, entityB string, maxPaths int) (*PathResult, error) {
	if entityA == "" || entityB == "" {
		return nil, fmt.Errorf("retrieval: both entity references required")
	}
	if maxPaths < 1 {
		maxPaths = 5
	}

	result := &PathResult{From: entityA, To: entityB, Paths: []Path{}}

	aID, aName, okA, err := r.resolveEntity(ctx, entityA)
	if err != nil {
		return nil, err
	}
	bID, _, okB, err := r.resolveEntity(ctx, entityB)
	if err != nil {
		return nil, err
	}
	if !okA || !okB {
		r.log.Info("Path endpoint unresolvable", "from", entityA, "to", entityB)
		return result, nil
	}

	// The store's shortest-path enumeration excludes zero-length paths, so
	// identical endpoints are answered directly.
	if aID == bID {
		result.Paths = append(result.Paths, Path{Length: 0, Nodes: []string{aName}, Relationships: []string{}})
		result.Count = 1
		return result, nil
	}

	records, err := r.runner.Run(ctx, shortestPathsCypher, map[string]any{
		"a": aID, "b": bID, "max_paths": maxPaths,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: shortest paths: %w", err)
	}

	for _, record := range records {
		raw, _ := record.Get("path")
		p, ok := raw.(dbtype.Path)
		if !ok {
			continue
		}
		path := Path{
			Length:        len(p.Relationships),
			Nodes:         make([]string, 0, len(p.Nodes)),
			Relationships: make([]string, 0, len(p.Relationships)),
		}
		for _, node := range p.Nodes {
			path.Nodes = append(path.Nodes, nodeName(node))
		}
		for _, rel := range p.Relationships {
			path.Relationships = append(path.Relationships, rel.Type)
		}
		result.Paths = append(result.Paths, path)
	}
	result.Count = len(result.Paths)
	return result, nil
}

const communityCypher = `
MATCH (n)
WHERE n.community = $community_id
CALL apoc.path.subgraphAll(n, {maxLevel: $depth, limit: $max_nodes})
YIELD nodes, relationships
RETURN nodes, relationships
`

// CommunitySubgraph returns the bounded neighborhood of every node tagged
// with a precomputed community id. Community assignment itself happens
// out-of-band; this only consumes the property.
func (r *Retriever) CommunitySubgraph(ctx context.Context, communityID string, depth int) (*Subgraph, error) {
	if communityID == "" {
		return nil, fmt.Errorf("retrieval: community id required")
	}
	if depth < 1 || depth > MaxHops {
		return nil, fmt.Errorf("retrieval: depth %d outside [1,%d]", depth, MaxHops)
	}

	params := map[string]any{
		"community_id": communityID, "depth": depth, "max_nodes": semanticNodeCeiling,
	}
	if cached, ok := lookupSubgraph(ctx, r.cache, "community", params); ok {
		return cached, nil
	}

	records, err := r.runner.Run(ctx, communityCypher, params)
	if err != nil {
		return nil, fmt.Errorf("retrieval: community query: %w", err)
	}

	sub := assembleSubgraph(records, semanticNodeCeiling)
	sub.Hops = depth
	sub.Community = communityID
	sub.Method = MethodCommunity
	storeSubgraph(ctx, r.cache, "community", params, sub)
	return sub, nil
}

func (r *Retriever) collectNames(ctx context.Context, query string, params map[string]any) ([]string, error) {
	records, err := r.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for _, record := range records {
		raw, _ := record.Get("name")
		if name, ok := raw.(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (r *Retriever) resolveEntity(ctx context.Context, ref string) (id, name string, found bool, err error) {
	records, err := r.runner.Run(ctx, resolveEntityCypher, map[string]any{"ref": ref})
	if err != nil {
		return "", "", false, fmt.Errorf("retrieval: resolve %q: %w", ref, err)
	}
	if len(records) == 0 {
		return "", "", false, nil
	}
	rawID, _ := records[0].Get("eid")
	rawName, _ := records[0].Get("name")
	id, _ = rawID.(string)
	name, _ = rawName.(string)
	return id, name, id != "", nil
}

// assembleSubgraph unions the per-seed rows, deduplicates nodes, drops
// edges whose endpoints fell outside the node ceiling, and annotates each
// edge with both endpoint names.
func assembleSubgraph(records []*neo4j.Record, maxNodes int) *Subgraph {
	sub := &Subgraph{Nodes: []Node{}, Relationships: []Edge{}}
	seen := map[string]string{} // element id -> display name
	var rels []dbtype.Relationship
	relSeen := map[string]struct{}{}

	for _, record := range records {
		rawNodes, _ := record.Get("nodes")
		nodeList, _ := rawNodes.([]any)
		for _, rawNode := range nodeList {
			node, ok := rawNode.(dbtype.Node)
			if !ok {
				continue
			}
			if _, dup := seen[node.ElementId]; dup {
				continue
			}
			if len(sub.Nodes) >= maxNodes {
				continue
			}
			seen[node.ElementId] = nodeName(node)
			props := make(Node, len(node.Props)+1)
			for k, v := range node.Props {
				props[k] = v
			}
			if len(node.Labels) > 0 {
				props["label"] = node.Labels[0]
			}
			sub.Nodes = append(sub.Nodes, props)
		}

		rawRels, _ := record.Get("relationships")
		relList, _ := rawRels.([]any)
		for _, rawRel := range relList {
			rel, ok := rawRel.(dbtype.Relationship)
			if !ok {
				continue
			}
			if _, dup := relSeen[rel.ElementId]; dup {
				continue
			}
			relSeen[rel.ElementId] = struct{}{}
			rels = append(rels, rel)
		}
	}

	for _, rel := range rels {
		from, okFrom := seen[rel.StartElementId]
		to, okTo := seen[rel.EndElementId]
		if !okFrom || !okTo {
			continue
		}
		sub.Relationships = append(sub.Relationships, Edge{
			From:       from,
			To:         to,
			Type:       rel.Type,
			Properties: rel.Props,
		})
	}

	sub.Count = len(sub.Nodes)
	return sub
}

func nodeName(node dbtype.Node) string {
	if name, ok := node.Props["name"].(string); ok && name != "" {
		return name
	}
	if id, ok := node.Props["id"].(string); ok {
		return id
	}
	return node.ElementId
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
