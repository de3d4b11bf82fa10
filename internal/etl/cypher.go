package etl

import (
	"fmt"
	"strings"
)

// Labels and relationship types cannot be query parameters, so they are
// interpolated after identifier validation (see config.Validate). All
// record values travel as parameters.

func entityCypher(m EntityMapping, strategy UpsertStrategy) string {
	var setNow strings.Builder
	for _, key := range m.nowMetaKeys() {
		fmt.Fprintf(&setNow, ", n.%s = datetime()", key)
	}

	if strategy == UpsertCreate {
		return fmt.Sprintf(`
UNWIND $batch AS row
CREATE (n:%s {id: row.id})
SET n += row.props%s, n.created_at = datetime()
RETURN count(n) AS upserts
`, m.Label, setNow.String())
	}

	return fmt.Sprintf(`
UNWIND $batch AS row
MERGE (n:%s {id: row.id})
ON CREATE SET n += row.props%s, n.created_at = datetime()
ON MATCH SET n += row.props%s, n.updated_at = datetime()
RETURN count(n) AS upserts
`, m.Label, setNow.String(), setNow.String())
}

func relationshipCypher(m RelationshipMapping) string {
	return fmt.Sprintf(`
UNWIND $batch AS row
MATCH (a {id: row.from})
MATCH (b {id: row.to})
MERGE (a)-[r:%s]->(b)
ON CREATE SET r += row.props, r.created_at = datetime()
ON MATCH SET r += row.props, r.updated_at = datetime()
RETURN count(r) AS upserts
`, m.Type)
}
