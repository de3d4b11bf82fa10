package governance

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

type StaleEntity struct {
	Name      string `json:"name"`
	UpdatedAt string `json:"updated_at"`
}

type HighDegreeNode struct {
	Name   string `json:"name"`
	Degree int64  `json:"degree"`
}

type Report struct {
	Stale       []StaleEntity    `json:"stale"`
	MissingTags []string         `json:"missing_tags"`
	HighDegree  []HighDegreeNode `json:"high_degree"`
	Issues      []string         `json:"issues"`
}

func (r *Report) Clean() bool { return len(r.Issues) == 0 }

type runner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

// QA runs the batch data-quality checks: assertions against aggregate
// counts, nothing heavier.
type QA struct {
	runner runner
	log    *logger.Logger
}

func NewQA(client *neo4jdb.Client, log *logger.Logger) *QA {
	return newQAWithRunner(&sessionReader{client: client}, log)
}

func newQAWithRunner(r runner, log *logger.Logger) *QA {
	return &QA{runner: r, log: log.With("component", "DataQA")}
}

func (q *QA) CheckStale(ctx context.Context, days int) ([]StaleEntity, error) {
	if days < 1 {
		days = 90
	}
	records, err := q.runner.Run(ctx, `
MATCH (n)
WHERE n.updated_at < datetime() - duration({days: $days})
RETURN coalesce(n.name, n.id) AS name, toString(n.updated_at) AS updated
LIMIT 10
`, map[string]any{"days": days})
	if err != nil {
		return nil, fmt.Errorf("governance: stale check: %w", err)
	}
	stale := make([]StaleEntity, 0, len(records))
	for _, record := range records {
		rawName, _ := record.Get("name")
		rawUpdated, _ := record.Get("updated")
		entity := StaleEntity{}
		entity.Name, _ = rawName.(string)
		entity.UpdatedAt, _ = rawUpdated.(string)
		stale = append(stale, entity)
	}
	return stale, nil
}

func (q *QA) CheckMissingTags(ctx context.Context) ([]string, error) {
	records, err := q.runner.Run(ctx, `
MATCH (n)
WHERE n.tags IS NULL OR size(n.tags) = 0
RETURN coalesce(n.name, n.id) AS name
`, nil)
	if err != nil {
		return nil, fmt.Errorf("governance: missing-tags check: %w", err)
	}
	missing := make([]string, 0, len(records))
	for _, record := range records {
		raw, _ := record.Get("name")
		if name, ok := raw.(string); ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func (q *QA) CheckHighDegree(ctx context.Context, threshold int) ([]HighDegreeNode, error) {
	if threshold < 1 {
		threshold = 50
	}
	records, err := q.runner.Run(ctx, `
MATCH (n)--()
WITH n, count(*) AS degree
WHERE degree > $threshold
RETURN coalesce(n.name, n.id) AS name, degree
ORDER BY degree DESC
`, map[string]any{"threshold": threshold})
	if err != nil {
		return nil, fmt.Errorf("governance: degree check: %w", err)
	}
	hubs := make([]HighDegreeNode, 0, len(records))
	for _, record := range records {
		rawName, _ := record.Get("name")
		rawDegree, _ := record.Get("degree")
		hub := HighDegreeNode{}
		hub.Name, _ = rawName.(string)
		hub.Degree, _ = rawDegree.(int64)
		hubs = append(hubs, hub)
	}
	return hubs, nil
}

func (q *QA) RunAll(ctx context.Context, staleDays, degreeThreshold int) (*Report, error) {
	report := &Report{MissingTags: []string{}, Issues: []string{}}

	stale, err := q.CheckStale(ctx, staleDays)
	if err != nil {
		return nil, err
	}
	report.Stale = stale
	if len(stale) > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d stale entities (>%d days)", len(stale), staleDays))
	}

	missing, err := q.CheckMissingTags(ctx)
	if err != nil {
		return nil, err
	}
	report.MissingTags = missing
	if len(missing) > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d entities without tags", len(missing)))
	}

	hubs, err := q.CheckHighDegree(ctx, degreeThreshold)
	if err != nil {
		return nil, err
	}
	report.HighDegree = hubs
	if len(hubs) > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d nodes exceed degree %d", len(hubs), degreeThreshold))
	}

	q.log.Info("Data quality checks finished", "issues", len(report.Issues))
	return report, nil
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
