package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

// Triple is one extracted subject-predicate-object relation with its
// provenance. Repeated observations of the same (predicate, subject,
// object) key accumulate an observation count instead of overwriting.
type Triple struct {
	Subject     string    `json:"subject"`
	Predicate   string    `json:"predicate"`
	Object      string    `json:"object"`
	Confidence  float64   `json:"confidence"`
	Source      string    `json:"source"`
	ExtractedAt time.Time `json:"extracted_at"`
}

func (t Triple) validate() error {
	if t.Subject == "" || t.Predicate == "" || t.Object == "" {
		return fmt.Errorf("extraction: triple requires subject, predicate and object")
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("extraction: confidence %v outside [0,1]", t.Confidence)
	}
	return nil
}

// The whole create-or-increment decision happens inside one MERGE so
// concurrent upserts of the same relation cannot lose counts.
const upsertTriplesCypher = `
UNWIND $triples AS t
MERGE (s:Entity {name: t.subject})
ON CREATE SET s.created_at = datetime(), s.source = t.source
MERGE (o:Entity {name: t.object})
ON CREATE SET o.created_at = datetime(), o.source = t.source
MERGE (s)-[r:EXTRACTED_RELATION {type: t.predicate}]->(o)
ON CREATE SET r.confidence = t.confidence,
    r.source = t.source,
    r.extracted_at = t.extracted_at,
    r.observation_count = 1
ON MATCH SET r.last_seen = t.extracted_at,
    r.observation_count = r.observation_count + 1
RETURN count(r) AS upserts
`

type writeRunner interface {
	Run(ctx context.Context, query string, params map[string]any) (int64, error)
}

type Store struct {
	runner writeRunner
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, log *logger.Logger) *Store {
	return &Store{runner: &sessionRunner{client: client}, log: log.With("component", "ExtractionStore")}
}

func newStoreWithRunner(runner writeRunner, log *logger.Logger) *Store {
	return &Store{runner: runner, log: log.With("component", "ExtractionStore")}
}

// UpsertTriples writes a batch of triples in one transactional statement
// and returns the number of relations touched.
func (s *Store) UpsertTriples(ctx context.Context, triples []Triple) (int64, error) {
	if len(triples) == 0 {
		return 0, nil
	}
	rows := make([]map[string]any, 0, len(triples))
	for _, t := range triples {
		if err := t.validate(); err != nil {
			return 0, err
		}
		extractedAt := t.ExtractedAt
		if extractedAt.IsZero() {
			extractedAt = time.Now().UTC()
		}
		rows = append(rows, map[string]any{
			"subject":      t.Subject,
			"predicate":    t.Predicate,
			"object":       t.Object,
			"confidence":   t.Confidence,
			"source":       t.Source,
			"extracted_at": extractedAt,
		})
	}

	count, err := s.runner.Run(ctx, upsertTriplesCypher, map[string]any{"triples": rows})
	if err != nil {
		return 0, fmt.Errorf("extraction: upsert triples: %w", err)
	}
	s.log.Debug("Upserted triples", "count", count)
	return count, nil
}

type sessionRunner struct {
	client *neo4jdb.Client
}

func (r *sessionRunner) Run(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := r.client.WriteSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		upserts, _ := record.Get("upserts")
		n, ok := upserts.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected upsert count %T", upserts)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}
