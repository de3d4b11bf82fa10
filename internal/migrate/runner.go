package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mbaucer/kgraph/internal/platform/logger"
	"github.com/mbaucer/kgraph/internal/platform/neo4jdb"
)

// Migration files are named <version>_<name>.cypher and applied in
// version order. Applied versions are tracked as Migration nodes with a
// checksum, so a rerun is a no-op.

type Applied struct {
	Version string
	Name    string
}

type executor interface {
	Exec(ctx context.Context, query string, params map[string]any) error
	Query(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

type Runner struct {
	exec executor
	log  *logger.Logger
}

func NewRunner(client *neo4jdb.Client, log *logger.Logger) *Runner {
	return newRunnerWithExecutor(&sessionExecutor{client: client}, log)
}

func newRunnerWithExecutor(exec executor, log *logger.Logger) *Runner {
	return &Runner{exec: exec, log: log.With("component", "MigrationRunner")}
}

func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func (r *Runner) appliedVersions(ctx context.Context) (map[string]struct{}, error) {
	records, err := r.exec.Query(ctx, `
MATCH (m:Migration)
RETURN m.version AS version
ORDER BY m.version
`, nil)
	if err != nil {
		return nil, fmt.Errorf("migrate: list applied: %w", err)
	}
	applied := make(map[string]struct{}, len(records))
	for _, record := range records {
		raw, _ := record.Get("version")
		if v, ok := raw.(string); ok {
			applied[v] = struct{}{}
		}
	}
	return applied, nil
}

// Apply runs every pending .cypher script under dir, in order, and
// returns the migrations it applied.
func (r *Runner) Apply(ctx context.Context, dir string) ([]Applied, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.cypher"))
	if err != nil {
		return nil, fmt.Errorf("migrate: scan %s: %w", dir, err)
	}
	sort.Strings(entries)

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var done []Applied
	for _, path := range entries {
		stem := strings.TrimSuffix(filepath.Base(path), ".cypher")
		version, name, _ := strings.Cut(stem, "_")
		if name == "" {
			name = "unknown"
		}
		if _, ok := applied[version]; ok {
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return done, fmt.Errorf("migrate: read %s: %w", path, err)
		}
		if err := r.applyOne(ctx, version, name, string(content)); err != nil {
			return done, err
		}
		r.log.Info("Applied migration", "version", version, "name", name)
		done = append(done, Applied{Version: version, Name: name})
	}
	if len(done) == 0 {
		r.log.Info("No pending migrations")
	}
	return done, nil
}

func (r *Runner) applyOne(ctx context.Context, version, name, content string) error {
	for _, raw := range strings.Split(content, ";") {
		statement := stripComments(raw)
		if statement == "" {
			continue
		}
		if err := r.exec.Exec(ctx, statement, nil); err != nil {
			return fmt.Errorf("migrate: apply %s_%s: %w", version, name, err)
		}
	}
	return r.exec.Exec(ctx, `
CREATE (m:Migration {
  version: $version,
  name: $name,
  applied_at: datetime(),
  checksum: $checksum
})
`, map[string]any{"version": version, "name": name, "checksum": Checksum(content)})
}

func stripComments(statement string) string {
	var lines []string
	for _, line := range strings.Split(statement, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
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
