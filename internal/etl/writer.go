package etl

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

// BatchWriter executes one parameterized write statement as a single
// transactional unit and reports how many rows it upserted.
type BatchWriter interface {
	WriteBatch(ctx context.Context, query string, params map[string]any) (int64, error)
}

type graphWriter struct {
	client *neo4jdb.Client
}

func NewGraphWriter(client *neo4jdb.Client) BatchWriter {
	return &graphWriter{client: client}
}

func (w *graphWriter) WriteBatch(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := w.client.WriteSession(ctx)
	defer session.Close(ctx)

	count, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
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
	return count.(int64), nil
}
